package gateway

import (
	"errors"
	"net/http"

	"github.com/aegis/copilot/internal/logger"
	"github.com/aegis/copilot/pkg/chat"
)

var redactor = logger.NewRedactor()

// StatusForKind maps an error kind to an HTTP status
func StatusForKind(kind chat.Kind) int {
	switch kind {
	case chat.KindMissingDomain, chat.KindMissingUserMessage, KindInvalidRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case chat.KindSessionNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case chat.KindUpstreamError, chat.KindEmptyUpstreamReply:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorDetail builds the client-facing error. Untyped faults become
// InternalError; credentials are scrubbed from every message.
func errorDetail(err error) ErrorDetail {
	var e *chat.Error
	if !errors.As(err, &e) {
		e = chat.Internal(err)
	}
	return ErrorDetail{Kind: e.Kind, Message: redactor.Redact(e.Error())}
}
