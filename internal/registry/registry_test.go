package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConn struct{ id int }

func (c *fakeConn) Close() error { return nil }

func TestRegistry_RegisterLookupRemove(t *testing.T) {
	r := New()
	c := &fakeConn{id: 1}

	_, ok := r.Lookup("dev-1")
	require.False(t, ok)

	r.Register("dev-1", c)
	got, ok := r.Lookup("dev-1")
	require.True(t, ok)
	require.Same(t, c, got)

	require.True(t, r.Remove("dev-1", c))
	_, ok = r.Lookup("dev-1")
	require.False(t, ok)

	// Idempotent.
	require.False(t, r.Remove("dev-1", c))
}

func TestRegistry_ReRegisterReplaces(t *testing.T) {
	r := New()
	old := &fakeConn{id: 1}
	next := &fakeConn{id: 2}

	r.Register("dev-1", old)
	r.Register("dev-1", next)

	got, ok := r.Lookup("dev-1")
	require.True(t, ok)
	require.Same(t, next, got)

	// The orphaned connection's cleanup must not evict the replacement.
	require.False(t, r.Remove("dev-1", old))
	got, ok = r.Lookup("dev-1")
	require.True(t, ok)
	require.Same(t, next, got)

	require.True(t, r.Remove("dev-1", next))
	require.Equal(t, 0, r.Len())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("dev-%d", i%10)
			c := &fakeConn{id: i}
			r.Register(id, c)
			r.Lookup(id)
			r.Remove(id, c)
		}(i)
	}
	wg.Wait()
}
