package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/upb/realtime-jwtauth/internal/hub"
	"github.com/upb/realtime-jwtauth/internal/shared"
	"github.com/upb/realtime-jwtauth/utils"
	"go.uber.org/zap"
)

// statusClientClosedRequest reports a request abandoned by the client
const statusClientClosedRequest = 499

// HandleAuthorizationError maps hub and authorization errors to HTTP responses
func HandleAuthorizationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	status, code, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("authorization failed", zap.Error(err), zap.String("error_type", code))
	}

	if err := utils.WriteError(w, status, code, message, shared.GetErrorDetails(err)); err != nil {
		logger.Error("failed to write error response", zap.Error(err))
	}
}

func statusFor(err error) (int, string, string) {
	switch {
	case errors.Is(err, hub.ErrConnectionNotFound),
		errors.Is(err, hub.ErrControllerNotFound),
		errors.Is(err, hub.ErrOperationNotFound):
		return http.StatusNotFound, "not_found", err.Error()

	case errors.Is(err, hub.ErrNotAuthorized):
		return http.StatusForbidden, "not_authorized", err.Error()

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout", "authorization did not complete in time"

	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "canceled", "request was canceled before authorization completed"

	case shared.IsCredentialError(err):
		return http.StatusUnauthorized, string(shared.GetErrorType(err)), err.Error()

	case shared.IsGroupNotAuthorized(err):
		return http.StatusForbidden, string(shared.ErrorTypeGroupNotAuthorized), err.Error()

	case errors.Is(err, hub.ErrAlreadyAuthorized):
		return http.StatusConflict, string(shared.ErrorTypeHostAuthorizationFailed), err.Error()
	}

	// Everything else is the host's own authorize call failing. The raw error
	// may carry storage details, so only its class is exposed.
	return http.StatusBadGateway, string(shared.Classify(err)), "connection could not be authorized"
}
