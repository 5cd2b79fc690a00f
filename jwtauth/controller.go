// Package jwtauth authorizes real-time connections with signed access tokens.
//
// The Controller is registered with a host under its name and exposes a single
// operation, authorize, callable before the connection is authenticated. It
// verifies the access token, checks that any groups the caller selected for the
// session are granted by the token, and asks the host to mark the connection as
// authorized with a payload derived from the token's user record.
//
// A selection is only checked when it is a non-empty array of strings. Any
// other value, including an array with a single non-string entry, voids the
// whole selection: the connection is authorized with no selected groups.
package jwtauth

import (
	"context"

	"github.com/upb/realtime-jwtauth/credential"
	"github.com/upb/realtime-jwtauth/internal/shared"
)

// DefaultName is the name the controller registers under
const DefaultName = "jwtAuth"

// Connection is the host's handle on a single client connection
type Connection interface {
	// Authorize records that the connection now acts as userID.
	// It may perform I/O and is called at most once per request.
	Authorize(ctx context.Context, userID, gameVersion string, payload *UserPayload) error
}

// Callback receives the outcome of an anonymous call: err is nil and ok is
// true on success, err is set and ok is false otherwise.
type Callback func(err error, ok bool)

// AnonymousController is implemented by controllers whose operations may be
// called on connections that have not been authorized yet.
type AnonymousController interface {
	Init(ctx context.Context) error
	Handle(ctx context.Context, conn Connection, params Params, done Callback)
}

// Registrar is implemented by hosts that accept controllers
type Registrar interface {
	AddController(name string, c AnonymousController) error
}

// TokenVerifier validates access tokens
type TokenVerifier interface {
	Verify(tokenString string) (*credential.ClaimSet, error)
}

// Controller authorizes connections from access tokens
type Controller struct {
	name     string
	verifier TokenVerifier
}

// Option configures a Controller
type Option func(*Controller)

// WithName overrides DefaultName
func WithName(name string) Option {
	return func(c *Controller) {
		if name != "" {
			c.name = name
		}
	}
}

// NewController creates a new Controller
func NewController(verifier TokenVerifier, opts ...Option) *Controller {
	c := &Controller{
		name:     DefaultName,
		verifier: verifier,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds c to the host under its name
func Register(r Registrar, c *Controller) error {
	return r.AddController(c.name, c)
}

// Name returns the name the controller registers under
func (c *Controller) Name() string {
	return c.name
}

// Init implements AnonymousController. The controller needs no warm-up.
func (c *Controller) Init(ctx context.Context) error {
	return ctx.Err()
}

// Handle implements AnonymousController
func (c *Controller) Handle(ctx context.Context, conn Connection, params Params, done Callback) {
	if err := c.Authorize(ctx, conn, DecodeRequest(params)); err != nil {
		done(err, false)
		return
	}
	done(nil, true)
}

// Authorize verifies the request and, if it is acceptable, authorizes conn.
// Verification and group errors are returned as domain errors; an error from
// the host's Authorize is returned unchanged.
func (c *Controller) Authorize(ctx context.Context, conn Connection, req Request) error {
	if req.AccessToken == "" {
		return shared.ErrInvalidCredential
	}

	claims, err := c.verifier.Verify(req.AccessToken)
	if err != nil {
		return err
	}

	if err := checkSelection(claims, req.SelectedGroups); err != nil {
		return err
	}

	payload := newUserPayload(claims, req.SelectedGroups)
	return conn.Authorize(ctx, claims.UserID(), req.GameVersion, payload)
}

// checkSelection rejects the whole selection if any entry is not granted by the token
func checkSelection(claims *credential.ClaimSet, selected []string) error {
	for _, group := range selected {
		if !claims.HasGroup(group) {
			return shared.NewDomainError(shared.ErrorTypeGroupNotAuthorized, "group not authorized", nil).
				WithDetail("group", group)
		}
	}
	return nil
}

var _ AnonymousController = (*Controller)(nil)
