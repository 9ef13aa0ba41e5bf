package api

import (
	"errors"
	"net/http"

	"github.com/samcharles93/pointernet/internal/pointer"
	"gonum.org/v1/gonum/mat"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// classify maps a prediction error to an HTTP status and error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pointer.ErrBatchMisaligned),
		errors.Is(err, pointer.ErrTokenOutOfRange),
		errors.Is(err, mat.ErrIndexOutOfRange):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, pointer.ErrEmbeddingsNotSet):
		return http.StatusServiceUnavailable, "model_not_ready"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}
