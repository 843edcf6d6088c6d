package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDownstreamKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Downstream("whatsapp: send", cause)

	assert.ErrorIs(t, err, ErrDownstreamUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "whatsapp: send: downstream unavailable: connection refused", err.Error())
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{Malformed("parse", nil), "malformed_payload"},
		{NotInitialized("whatsapp client"), "not_initialized"},
		{Downstream("dial", errors.New("busy")), "downstream_unavailable"},
		{ErrAuth, "auth"},
		{errors.New("other"), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err))
	}
}
