// Package xconf 加载缓存服务的配置文件，基于 koanf 实现。
//
// # 支持的格式
//
//   - YAML（推荐）：.yaml, .yml
//   - JSON：.json
//
// # 配置结构
//
// 配置文件包含日志段 log（见 xlog.Config）和缓存段 caches（缓存名到 xlocal.Spec）。
// 时长字段接受 "5m"、"30s" 这样的字符串，policy、guard、level 接受名称：
//
//	caches:
//	  sessions:
//	    policy: lru
//	    guard: mutex
//	    capacity: 1000
//	    default_ttl: 5m
//
// [Load] 和 [LoadBytes] 只做解析；[File.Specs] 按缓存名校验每个 Spec，
// 无效时返回 [ErrInvalidCache]。
//
// # 配置监视
//
// [Watch] 基于 fsnotify 监视配置文件所在目录，内置防抖，兼容 vim/emacs 的原子写入。
// 每次变更重新加载整个文件并回调；解析失败时回调收到错误，调用方继续使用旧配置。
package xconf
