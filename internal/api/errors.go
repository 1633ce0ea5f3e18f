package api

import (
	"errors"

	"github.com/jyothishs/rf-outdoor-link-planner/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrInvalidRequest indicates a malformed or incomplete request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSessionNotFound indicates an unknown or closed session ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions indicates the store is at capacity.
	ErrTooManySessions = errors.New("too many open sessions")
)

// ToStatusError maps planner errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, model.ErrInvalidValue):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, model.ErrFrequencyMismatch),
		errors.Is(err, model.ErrDomain):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, ErrTooManySessions):
		return status.Error(codes.ResourceExhausted, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
