// Package transport defines the management API spoken between zkctl and a
// running controller.
package transport

import "context"

// StatusFunc returns a JSON-encoded payload, e.g. the controller status.
// Using []byte keeps transports free of controller types.
type StatusFunc func(ctx context.Context) ([]byte, error)

// EnqueueFunc hands an action to the controller loop. It returns once the
// action is queued, not when it has been applied.
type EnqueueFunc func(ctx context.Context) error

// RestFunc queues a REST sub-service toggle.
type RestFunc func(ctx context.Context, enabled bool) error

// Handlers back the management endpoints. Nil handlers answer 501.
type Handlers struct {
    Status     StatusFunc
    Connection StatusFunc
    Reconcile  EnqueueFunc
    Resources  EnqueueFunc
    Rest       RestFunc
}

// RestRequest sets the desired REST sub-service state.
type RestRequest struct {
    Enabled bool `json:"enabled"`
}

// Ack reports whether an action was queued.
type Ack struct {
    Accepted bool   `json:"accepted"`
    Error    string `json:"error,omitempty"`
}

// RPCServer exposes the management endpoints.
type RPCServer interface {
    Start(ctx context.Context, h Handlers) error
    Addr() string
    Stop(ctx context.Context) error
}

// RPCClient calls the management endpoints of the node at addr.
type RPCClient interface {
    GetStatus(ctx context.Context, addr string) ([]byte, error)
    GetConnection(ctx context.Context, addr string) ([]byte, error)
    PostReconcile(ctx context.Context, addr string) (Ack, error)
    PostResources(ctx context.Context, addr string) (Ack, error)
    PostRest(ctx context.Context, addr string, req RestRequest) (Ack, error)
}
