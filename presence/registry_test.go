package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"talkify/domain/event"
)

type conn struct {
	id string
}

func (c *conn) ID() string                   { return c.id }
func (c *conn) Send(event.DomainEvent) error { return nil }

func TestRegistry_Register_And_Lookup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := uuid.NewString()
	handle := &conn{id: "c1"}

	// Given no user is connected
	req.Empty(registry.Snapshot())
	_, ok := registry.Lookup(userID)
	req.False(ok)

	// When a user registers a connection
	registry.Register(userID, handle)

	// Then the user is reachable through that handle
	got, ok := registry.Lookup(userID)
	req.True(ok)
	req.Same(handle, got)
	req.Equal([]string{userID}, registry.Snapshot())
}

func TestRegistry_Register_Last_Write_Wins(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := uuid.NewString()
	older := &conn{id: "older"}
	newer := &conn{id: "newer"}

	// Given an existing registration
	registry.Register(userID, older)

	// When the same user registers a newer connection
	registry.Register(userID, newer)

	// Then the older handle is evicted, not merged
	got, ok := registry.Lookup(userID)
	req.True(ok)
	req.Same(newer, got)
	req.Len(registry.Snapshot(), 1)
}

func TestRegistry_Unregister_Removes_Current_Handle(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := uuid.NewString()
	handle := &conn{id: "c1"}

	registry.Register(userID, handle)

	// When the registered handle unregisters
	removed := registry.Unregister(userID, handle)

	// Then the user is unreachable
	req.True(removed)
	_, ok := registry.Lookup(userID)
	req.False(ok)
	req.Empty(registry.Snapshot())
}

func TestRegistry_Stale_Unregister_Keeps_Newer_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := uuid.NewString()
	older := &conn{id: "older"}
	newer := &conn{id: "newer"}

	// Given a reconnect raced ahead of the old connection's disconnect
	registry.Register(userID, older)
	registry.Register(userID, newer)

	// When the delayed disconnect of the older connection arrives
	removed := registry.Unregister(userID, older)

	// Then the newer session survives
	req.False(removed)
	got, ok := registry.Lookup(userID)
	req.True(ok)
	req.Same(newer, got)
}

func TestRegistry_Concurrent_Lifecycles(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", n)
			handle := &conn{id: fmt.Sprintf("conn-%d", n)}
			registry.Register(userID, handle)
			_, _ = registry.Lookup(userID)
			if n%2 == 0 {
				registry.Unregister(userID, handle)
			}
		}(i)
	}
	wg.Wait()

	// Only odd-numbered users remain registered
	req.Len(registry.Snapshot(), 25)
}
