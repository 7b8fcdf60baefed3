package api

import (
	"errors"
	"net/http"

	"github.com/okian/hogu/internal/adapters/repository"
	"github.com/okian/hogu/internal/adapters/udp"
	service "github.com/okian/hogu/internal/app"
	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/okian/hogu/internal/domain/unknown"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrPanic      = errors.New("handler panicked")
)

// statusFor maps command errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrInvalidArgument),
		errors.Is(err, protocol.ErrUnknownKind),
		errors.Is(err, protocol.ErrUnknownStatus),
		errors.Is(err, unknown.ErrInvalidAnnotation):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrNoContext):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, service.ErrClosed),
		errors.Is(err, udp.ErrState):
		return http.StatusConflict
	case errors.Is(err, repository.ErrPoolExhausted),
		errors.Is(err, udp.ErrBind):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
