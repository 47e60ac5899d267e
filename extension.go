package kiln

import "context"

// Extension provides hooks into the container lifecycle.
type Extension interface {
	// Name returns the extension's name.
	Name() string

	// Order determines extension execution order (lower = earlier).
	Order() int

	// Init is called when the extension is registered to a container.
	Init(c *Container) error

	// Wrap intercepts operations (resolve, init, dispose).
	Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error)

	// OnError handles operation failures. It runs after the container's
	// lock is released, so implementations may call back into c.
	OnError(err error, op *Operation, c *Container)

	// OnWarning handles diagnostic warnings as they are recorded. Like
	// OnError it runs outside the container's lock.
	OnWarning(w Warning, c *Container)

	// Dispose is called when the container is disposed.
	Dispose(c *Container) error
}

// BaseExtension provides default implementations for Extension methods.
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a new base extension with the given name.
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string {
	return e.name
}

func (e *BaseExtension) Order() int {
	return 100
}

func (e *BaseExtension) Init(c *Container) error {
	return nil
}

func (e *BaseExtension) Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	return next()
}

func (e *BaseExtension) OnError(err error, op *Operation, c *Container) {
}

func (e *BaseExtension) OnWarning(w Warning, c *Container) {
}

func (e *BaseExtension) Dispose(c *Container) error {
	return nil
}

// Operation describes what operation is happening.
type Operation struct {
	Kind      OperationKind
	Key       string
	Container *Container
}

// OperationKind represents the type of operation.
type OperationKind string

const (
	// OpResolve indicates a factory invocation for a key.
	OpResolve OperationKind = "resolve"
	// OpInit indicates an explicit initialization hook invocation.
	OpInit OperationKind = "init"
	// OpDispose indicates a teardown hook invocation.
	OpDispose OperationKind = "dispose"
)
