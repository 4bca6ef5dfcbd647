// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xlocal: 进程内缓存引擎，支持 FIFO/LRU/LFU/Timed/Weak 淘汰策略和三种并发保护方式
//
// 设计原则：
//   - 提供统一的接口抽象，关闭缓存时替换为 Noop 实现即可
//   - 内置可观测性（指标、追踪）
//   - 回源支持合并、重试和熔断
package storage
