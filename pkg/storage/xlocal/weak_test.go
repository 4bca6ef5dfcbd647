package xlocal

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blob 足够大，不会落入 tiny 分配器，保证 cleanup 能够被触发。
type blob struct {
	id  int
	pad [56]byte
}

func putBlob(c *Engine[string, *blob], key string, id int) {
	c.Put(key, &blob{id: id})
}

func TestWeak_HoldsLiveValue(t *testing.T) {
	c, err := NewWeak[string, blob](time.Minute, nil)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, PolicyWeak, c.Policy())
	assert.Equal(t, 0, c.Capacity())

	v := &blob{id: 1}
	c.Put("a", v)
	runtime.GC()

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Same(t, v, got)
	runtime.KeepAlive(v)
}

func TestWeak_CollectedValueRemoved(t *testing.T) {
	rem := &removals[string, *blob]{}
	c, err := NewWeak[string, blob](0, nil, WithOnRemove(rem.listener()))
	require.NoError(t, err)
	defer c.Close()

	putBlob(c, "a", 1)
	require.Eventually(t, func() bool {
		runtime.GC()
		return c.Len() == 0
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool { return len(rem.snapshot()) == 1 }, time.Second, time.Millisecond)
	ev := rem.snapshot()[0]
	assert.Equal(t, "a", ev.key)
	assert.Nil(t, ev.value)
	assert.Equal(t, RemovalCollected, ev.cause)
	assert.Equal(t, uint64(1), c.Stats().Expirations)

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestWeak_NilValueIsStrong(t *testing.T) {
	c, err := NewWeak[string, blob](0, OptimisticGuard{})
	require.NoError(t, err)
	defer c.Close()

	c.Put("nil", nil)
	runtime.GC()
	runtime.GC()

	v, ok := c.Get("nil")
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, 0, c.Prune())
}

func TestWeak_RemoveReleasesCleanup(t *testing.T) {
	rem := &removals[string, *blob]{}
	c, err := NewWeak[string, blob](0, MutexGuard{}, WithOnRemove(rem.listener()))
	require.NoError(t, err)
	defer c.Close()

	putBlob(c, "a", 1)
	assert.True(t, c.Remove("a"))

	// 替换旧值后，旧值的回收不影响新条目
	putBlob(c, "b", 1)
	keep := &blob{id: 2}
	c.Put("b", keep)

	for range 5 {
		runtime.GC()
		time.Sleep(5 * time.Millisecond)
	}

	got, ok := c.Get("b")
	require.True(t, ok)
	assert.Same(t, keep, got)
	runtime.KeepAlive(keep)

	events := rem.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, RemovalExplicit, events[0].cause)
}

func TestWeak_TTLStillApplies(t *testing.T) {
	clock := newFakeClock()
	c, err := NewWeak[string, blob](time.Second, nil, WithClock[string, *blob](clock.Now))
	require.NoError(t, err)
	defer c.Close()

	v := &blob{id: 1}
	c.Put("a", v)
	clock.Advance(time.Second)
	_, ok := c.Get("a")
	assert.False(t, ok)
	runtime.KeepAlive(v)
}

func TestWeak_CollectAfterCloseIsIgnored(t *testing.T) {
	c, err := NewWeak[string, blob](0, nil)
	require.NoError(t, err)

	v := &blob{id: 1}
	c.Put("a", v)
	require.NoError(t, c.Close())

	// 关闭后 clear 已释放 cleanup，collect 直接返回
	c.collect(&entry[string, *blob]{key: "a"})
	assert.Equal(t, 0, c.Len())
	runtime.KeepAlive(v)
}
