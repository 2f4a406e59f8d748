package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/victornm/quizroom/internal/errors"
)

func TestConvert(t *testing.T) {
	tests := map[string]struct {
		err      error
		wantCode errors.Code
		wantHTTP int
	}{
		"plain error becomes internal": {
			err:      stderrors.New("connection reset"),
			wantCode: errors.CodeInternal,
			wantHTTP: http.StatusInternalServerError,
		},
		"wrapped not found keeps its code": {
			err:      fmt.Errorf("lookup: %w", errors.NotFound("quiz not found")),
			wantCode: errors.CodeNotFound,
			wantHTTP: http.StatusNotFound,
		},
		"permission denied maps to forbidden": {
			err:      errors.PermissionDenied("not yours"),
			wantCode: errors.CodePermissionDenied,
			wantHTTP: http.StatusForbidden,
		},
		"invalid state maps to conflict": {
			err:      errors.FailedPrecondition("session is not active"),
			wantCode: errors.CodeFailedPrecondition,
			wantHTTP: http.StatusConflict,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			e := errors.Convert(tt.err)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantHTTP, e.HTTPStatusCode())
		})
	}
}

func TestError_GRPCStatus(t *testing.T) {
	err := errors.NotFound("session not found: id=%s", "s1")

	s, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, s.Code())
	assert.Equal(t, "session not found: id=s1", s.Message())
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("insert: %w", errors.New(errors.CodeAlreadyExists))

	assert.True(t, errors.Is(err, errors.CodeAlreadyExists))
	assert.False(t, errors.Is(err, errors.CodeNotFound))
	assert.False(t, errors.Is(stderrors.New("x"), errors.CodeInternal))
}

func TestResult(t *testing.T) {
	assert.Equal(t, errors.Result{Success: true, Data: "s1"}, errors.OK("s1"))

	r := errors.Fail(errors.Internal(stderrors.New("dial tcp: timeout")))
	assert.False(t, r.Success)
	assert.Equal(t, "Internal", r.Error, "internal causes must not leak")

	r = errors.Fail(errors.FailedPrecondition("session is not active"))
	assert.Equal(t, "session is not active", r.Error)
}
