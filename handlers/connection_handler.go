package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/upb/realtime-jwtauth/internal/hub"
	"github.com/upb/realtime-jwtauth/internal/observability"
	"github.com/upb/realtime-jwtauth/jwtauth"
	"github.com/upb/realtime-jwtauth/models"
	"github.com/upb/realtime-jwtauth/repositories/postgres"
	"github.com/upb/realtime-jwtauth/utils"
	"go.uber.org/zap"
)

// maxParamsBytes bounds the authorize request body
const maxParamsBytes = 64 << 10

// SessionReader looks up recorded sessions
type SessionReader interface {
	GetByConnectionID(ctx context.Context, connectionID uuid.UUID) (*models.Session, error)
}

// ConnectionResponse represents a connection in API responses
type ConnectionResponse struct {
	ID string `json:"id"`
}

// AuthorizeResponse is returned for a successful anonymous authorize call
type AuthorizeResponse struct {
	Authorized bool   `json:"authorized"`
	UserID     string `json:"user_id"`
}

// ConnectionHandler exposes hub connections over HTTP
type ConnectionHandler struct {
	hub      *hub.Hub
	sessions SessionReader
	logger   *zap.Logger
}

// NewConnectionHandler creates a new ConnectionHandler. sessions may be nil.
func NewConnectionHandler(h *hub.Hub, sessions SessionReader, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		hub:      h,
		sessions: sessions,
		logger:   logger,
	}
}

// HandleCreate handles POST /connections
func (h *ConnectionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	conn := h.hub.Connect()

	h.logger.Debug("connection created",
		observability.RequestFields(middleware.GetReqID(r.Context()), conn.ID().String())...)

	if err := utils.WriteCreated(w, ConnectionResponse{ID: conn.ID().String()}); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleGet handles GET /connections/{id}
func (h *ConnectionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := utils.WriteOK(w, conn.State()); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleDelete handles DELETE /connections/{id}
func (h *ConnectionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	if !h.hub.Disconnect(id) {
		_ = utils.WriteNotFound(w, "connection not found")
		return
	}
	utils.WriteNoContent(w)
}

// HandleAuthorize handles POST /connections/{id}/anonymous/{controller}/authorize.
// The JSON body is passed to the controller as its call parameters.
func (h *ConnectionHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	controller := chi.URLParam(r, "controller")

	params, err := decodeParams(http.MaxBytesReader(w, r.Body, maxParamsBytes))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", map[string]interface{}{"error": err.Error()})
		return
	}

	fields := append(observability.RequestFields(middleware.GetReqID(r.Context()), id.String()),
		zap.String("controller", controller))

	if err := h.hub.CallAnonymous(r.Context(), id, controller, hub.OperationAuthorize, params); err != nil {
		h.logger.Info("authorize rejected", append(fields, zap.Error(err))...)
		HandleAuthorizationError(w, err, h.logger)
		return
	}

	conn, ok := h.hub.Conn(id)
	if !ok {
		HandleAuthorizationError(w, hub.ErrConnectionNotFound, h.logger)
		return
	}

	h.logger.Info("authorize accepted", append(fields, zap.String("user_id", conn.UserID()))...)
	if err := utils.WriteOK(w, AuthorizeResponse{Authorized: true, UserID: conn.UserID()}); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleGetSession handles GET /connections/{id}/session
func (h *ConnectionHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		_ = utils.WriteNotFound(w, "session store is not configured")
		return
	}

	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	session, err := h.sessions.GetByConnectionID(r.Context(), id)
	if err != nil {
		if errors.Is(err, postgres.ErrSessionNotFound) {
			_ = utils.WriteNotFound(w, "session not found")
			return
		}
		h.logger.Error("failed to load session", zap.Error(err), zap.String("connection_id", id.String()))
		_ = utils.WriteError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred", nil)
		return
	}

	if err := utils.WriteOK(w, session); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

func (h *ConnectionHandler) lookup(w http.ResponseWriter, r *http.Request) (*hub.Conn, bool) {
	id, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return nil, false
	}

	conn, ok := h.hub.Conn(id)
	if !ok {
		_ = utils.WriteNotFound(w, "connection not found")
		return nil, false
	}
	return conn, true
}

// decodeParams reads call parameters. An empty body is an empty parameter set.
func decodeParams(body io.Reader) (jwtauth.Params, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	params := jwtauth.Params{}
	if err := dec.Decode(&params); err != nil {
		if errors.Is(err, io.EOF) {
			return params, nil
		}
		return nil, err
	}
	return params, nil
}
