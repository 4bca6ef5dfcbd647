package xlocal_test

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/omeyang/xkitcache/pkg/storage/xlocal"
)

func Example() {
	// 最多 1000 条、默认 5 分钟过期的 LRU 缓存
	cache, err := xlocal.NewLRU[string, int](xlocal.Config{
		Capacity:   1000,
		DefaultTTL: 5 * time.Minute,
	}, nil)
	if err != nil {
		panic(err)
	}
	defer cache.Close()

	cache.Put("user:123", 42)

	if v, ok := cache.Get("user:123"); ok {
		fmt.Println("Found:", v)
	}
	if cache.Contains("user:123") {
		fmt.Println("Key exists")
	}
	cache.Remove("user:123")
	fmt.Println("Length:", cache.Len())

	// Output:
	// Found: 42
	// Key exists
	// Length: 0
}

func ExampleNewFIFO_withOnRemove() {
	cache, err := xlocal.NewFIFO(xlocal.Config{Capacity: 2}, nil,
		xlocal.WithOnRemove(func(key string, value int, cause xlocal.RemovalCause) {
			fmt.Printf("Removed: %s=%d (%s)\n", key, value, cause)
		}))
	if err != nil {
		panic(err)
	}

	cache.Put("key1", 100)
	cache.Put("key2", 200)
	// 读取不改变 FIFO 顺序，key1 仍是最早插入的条目
	cache.Get("key1")
	cache.Put("key3", 300)

	fmt.Println("Keys:", cache.Keys())

	// Output:
	// Removed: key1=100 (evicted)
	// Keys: [key2 key3]
}

func ExampleEngine_GetOrLoad() {
	cache, err := xlocal.NewTimed[string, string](time.Minute, nil)
	if err != nil {
		panic(err)
	}
	defer cache.Close()

	load := func() (string, error) {
		fmt.Println("loading")
		return "value", nil
	}
	v1, _ := cache.GetOrLoad("k", load)
	v2, _ := cache.GetOrLoad("k", load)
	fmt.Println(v1, v2)

	// Output:
	// loading
	// value value
}

func ExampleLoader() {
	cache, err := xlocal.NewLRU[string, string](xlocal.Config{Capacity: 100}, xlocal.OptimisticGuard{})
	if err != nil {
		panic(err)
	}
	defer cache.Close()

	loader, err := xlocal.NewLoader[string, string](cache,
		func(_ context.Context, key string) (string, error) {
			return strings.ToUpper(key), nil
		},
		xlocal.WithLoadTimeout(time.Second),
		xlocal.WithRetry(3, 10*time.Millisecond),
	)
	if err != nil {
		panic(err)
	}

	v, err := loader.Load(context.Background(), "hello")
	fmt.Println(v, err)
	fmt.Println(cache.Contains("hello"))

	// Output:
	// HELLO <nil>
	// true
}

func ExampleBuild() {
	spec := xlocal.Spec{
		Policy:     xlocal.PolicyLFU,
		Guard:      xlocal.GuardMutex,
		Capacity:   2,
		DefaultTTL: time.Minute,
	}
	cache, err := xlocal.Build[string, int](spec)
	if err != nil {
		panic(err)
	}
	defer cache.Close()

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Get("a")
	cache.Put("c", 3)

	fmt.Println(cache.Contains("a"), cache.Contains("b"), cache.Contains("c"))
	fmt.Println("Stats:", cache.Stats().Evictions)

	// Output:
	// true false true
	// Stats: 1
}

func ExampleEngine_All() {
	cache, err := xlocal.NewFIFO[string, int](xlocal.Config{}, nil)
	if err != nil {
		panic(err)
	}
	defer cache.Close()

	for i, k := range []string{"a", "b", "c"} {
		cache.Put(k, i)
	}
	for k, v := range cache.All() {
		fmt.Println(k, v)
	}

	// Output:
	// a 0
	// b 1
	// c 2
}
