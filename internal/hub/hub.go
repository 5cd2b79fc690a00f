// Package hub is an in-memory real-time connection server. It owns client
// connections, holds the registered controllers and dispatches anonymous calls
// to them.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/realtime-jwtauth/internal/shared"
	"github.com/upb/realtime-jwtauth/jwtauth"
	"github.com/upb/realtime-jwtauth/models"
	"go.uber.org/zap"
)

// OperationAuthorize is the anonymous operation exposed by authorization controllers
const OperationAuthorize = "authorize"

var (
	// ErrConnectionNotFound is returned for unknown connection ids
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrControllerNotFound is returned when no controller is registered under a name
	ErrControllerNotFound = errors.New("controller not found")

	// ErrOperationNotFound is returned for operations a controller does not expose
	ErrOperationNotFound = errors.New("operation not found")

	// ErrDuplicateController is returned when a name is registered twice
	ErrDuplicateController = errors.New("controller already registered")

	// ErrAlreadyAuthorized is returned when a connection is authorized twice
	ErrAlreadyAuthorized = errors.New("connection already authorized")

	// ErrNotAuthorized is reported when a controller completes without success or error
	ErrNotAuthorized = errors.New("authorization declined")
)

// SessionRecorder persists authorized sessions
type SessionRecorder interface {
	RecordSession(ctx context.Context, session *models.Session) error
}

// Hub holds connections and controllers
type Hub struct {
	mu          sync.RWMutex
	controllers map[string]jwtauth.AnonymousController
	conns       map[uuid.UUID]*Conn

	recorder SessionRecorder
	logger   *zap.Logger
}

// Option configures a Hub
type Option func(*Hub)

// WithSessionRecorder persists every authorization through r
func WithSessionRecorder(r SessionRecorder) Option {
	return func(h *Hub) { h.recorder = r }
}

// New creates a new Hub
func New(logger *zap.Logger, opts ...Option) *Hub {
	h := &Hub{
		controllers: make(map[string]jwtauth.AnonymousController),
		conns:       make(map[uuid.UUID]*Conn),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddController implements jwtauth.Registrar
func (h *Hub) AddController(name string, c jwtauth.AnonymousController) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.controllers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateController, name)
	}
	h.controllers[name] = c

	h.logger.Info("controller registered", zap.String("controller", name))
	return nil
}

// Controller returns the controller registered under name
func (h *Hub) Controller(name string) (jwtauth.AnonymousController, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.controllers[name]
	return c, ok
}

// Init initializes every registered controller
func (h *Hub) Init(ctx context.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for name, c := range h.controllers {
		if err := c.Init(ctx); err != nil {
			return fmt.Errorf("init controller %s: %w", name, err)
		}
	}
	return nil
}

// Connect opens a new, unauthorized connection
func (h *Hub) Connect() *Conn {
	conn := &Conn{id: uuid.New(), hub: h}

	h.mu.Lock()
	h.conns[conn.id] = conn
	h.mu.Unlock()

	h.logger.Debug("connection opened", zap.String("connection_id", conn.id.String()))
	return conn
}

// Conn returns the connection with the given id
func (h *Hub) Conn(id uuid.UUID) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[id]
	return conn, ok
}

// Disconnect closes a connection. It reports whether the connection existed.
func (h *Hub) Disconnect(id uuid.UUID) bool {
	h.mu.Lock()
	_, ok := h.conns[id]
	delete(h.conns, id)
	h.mu.Unlock()

	if ok {
		h.logger.Debug("connection closed", zap.String("connection_id", id.String()))
	}
	return ok
}

// Count returns the number of open connections
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CallAnonymous runs an operation that does not require an authorized connection
// and waits for the controller to complete it.
func (h *Hub) CallAnonymous(ctx context.Context, connID uuid.UUID, controller, operation string, params jwtauth.Params) error {
	conn, ok := h.Conn(connID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, connID)
	}
	c, ok := h.Controller(controller)
	if !ok {
		return fmt.Errorf("%w: %s", ErrControllerNotFound, controller)
	}
	if operation != OperationAuthorize {
		return fmt.Errorf("%w: %s.%s", ErrOperationNotFound, controller, operation)
	}

	result := make(chan error, 1)
	c.Handle(ctx, conn, params, func(err error, ok bool) {
		if err == nil && !ok {
			err = ErrNotAuthorized
		}
		select {
		case result <- err:
		default:
		}
	})

	// A controller that completed synchronously has already decided; its result
	// wins over a context that ended meanwhile.
	var err error
	select {
	case err = <-result:
	default:
		select {
		case err = <-result:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err != nil {
		h.logger.Warn("anonymous call failed",
			zap.String("connection_id", connID.String()),
			zap.String("controller", controller),
			zap.String("operation", operation),
			zap.String("error_type", string(shared.Classify(err))),
			zap.Error(err))
	}
	return err
}
