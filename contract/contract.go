//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"talkify/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is one live, addressable transport handle. A handle belongs to
// exactly one connection lifecycle; a reconnect produces a new handle.
type Connection interface {
	ID() string
	// Send frames the event and pushes it to this connection. Best effort:
	// an error means this connection only, never the whole pipeline.
	Send(e event.DomainEvent) error
}

// ConnectionGateway carries framed events to/from specific connection
// handles. Channels group every connection a user may hold for presence
// purposes (the "user:{id}" personal channel).
type ConnectionGateway interface {
	SendTo(conn Connection, e event.DomainEvent)
	BroadcastExcept(except Connection, e event.DomainEvent)
	JoinChannel(conn Connection, channel string)
	SendToChannel(channel string, e event.DomainEvent)
}

// IPresenceRegistry is the in-memory index from user identifier to their
// single active connection handle. It holds no persistence or broadcast
// responsibility.
type IPresenceRegistry interface {
	Register(userID string, conn Connection)
	Unregister(userID string, conn Connection) bool
	Lookup(userID string) (Connection, bool)
	Snapshot() []string
}
