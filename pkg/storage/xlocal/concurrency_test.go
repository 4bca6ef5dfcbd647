package xlocal

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrent_GetOrLoadLoadsOnce(t *testing.T) {
	for _, g := range allGuards() {
		t.Run(g.Kind().String(), func(t *testing.T) {
			c, err := NewFIFO[string, int](Config{Capacity: 16}, g)
			require.NoError(t, err)
			defer c.Close()

			var calls atomic.Int32
			start := make(chan struct{})
			var wg sync.WaitGroup
			results := make([]int, 32)
			for i := range results {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					v, err := c.GetOrLoad("k", func() (int, error) {
						calls.Add(1)
						time.Sleep(time.Millisecond)
						return int(calls.Load()) * 100, nil
					})
					assert.NoError(t, err)
					results[i] = v
				}()
			}
			close(start)
			wg.Wait()

			assert.Equal(t, int32(1), calls.Load())
			for _, v := range results {
				assert.Equal(t, 100, v)
			}
		})
	}
}

func TestConcurrent_MixedOperations(t *testing.T) {
	type build func() (*Engine[int, int], error)
	builders := map[string]build{
		"fifo-rw":         func() (*Engine[int, int], error) { return NewFIFO[int, int](Config{Capacity: 64}, RWGuard{}) },
		"lfu-optimistic":  func() (*Engine[int, int], error) { return NewLFU[int, int](Config{Capacity: 64}, OptimisticGuard{}) },
		"lru-mutex":       func() (*Engine[int, int], error) { return NewLRU[int, int](Config{Capacity: 64}, MutexGuard{}) },
		"lru-optimistic":  func() (*Engine[int, int], error) { return NewLRU[int, int](Config{Capacity: 64}, OptimisticGuard{}) },
		"timed-optimistic": func() (*Engine[int, int], error) {
			return NewTimed[int, int](time.Millisecond, OptimisticGuard{})
		},
	}
	for name, b := range builders {
		t.Run(name, func(t *testing.T) {
			c, err := b()
			require.NoError(t, err)
			defer c.Close()

			var wg sync.WaitGroup
			for w := range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := range 500 {
						k := (w*31 + i) % 200
						switch i % 6 {
						case 0, 1:
							c.Put(k, i)
						case 2:
							c.Get(k)
						case 3:
							c.Contains(k)
						case 4:
							c.Prune()
						default:
							for range c.All() {
							}
						}
						if limit := c.Capacity(); limit > 0 {
							assert.LessOrEqual(t, c.Len(), limit)
						}
					}
				}()
			}
			wg.Wait()
			assert.False(t, c.Poisoned())
		})
	}
}
