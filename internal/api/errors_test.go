package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jyothishs/rf-outdoor-link-planner/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatusError(t *testing.T) {
	t.Parallel()

	mismatch := &model.FrequencyMismatchError{
		Pending:  model.Tower{ID: "a", FreqGHz: 2.4},
		Selected: model.Tower{ID: "b", FreqGHz: 5},
	}

	tests := []struct {
		name    string
		err     error
		code    codes.Code
		wantNil bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "status passthrough", err: status.Error(codes.PermissionDenied, "denied"), code: codes.PermissionDenied},
		{name: "invalid request", err: fmt.Errorf("%w: lat is required", ErrInvalidRequest), code: codes.InvalidArgument},
		{name: "invalid value", err: fmt.Errorf("%w: lat 91", model.ErrInvalidValue), code: codes.InvalidArgument},
		{name: "tower not found", err: fmt.Errorf("%w: tower %q", model.ErrNotFound, "x"), code: codes.NotFound},
		{name: "session not found", err: ErrSessionNotFound, code: codes.NotFound},
		{name: "frequency mismatch", err: mismatch, code: codes.FailedPrecondition},
		{name: "domain", err: model.ErrDomain, code: codes.FailedPrecondition},
		{name: "too many sessions", err: ErrTooManySessions, code: codes.ResourceExhausted},
		{name: "fallback", err: errors.New("boom"), code: codes.Internal},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ToStatusError(tc.err)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("ToStatusError(nil) = %v, want nil", got)
				}
				return
			}

			if got == nil {
				t.Fatalf("ToStatusError(%v) = nil, want error", tc.err)
			}
			if code := status.Code(got); code != tc.code {
				t.Fatalf("ToStatusError(%v) code = %v, want %v", tc.err, code, tc.code)
			}
		})
	}
}
