package flowerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		status int
	}{
		{"CSRF", New(CodeCSRF, ReasonInvalidState, "state mismatch"), http.StatusBadRequest},
		{"Protocol", New(CodeProtocol, ReasonMissingCode, "code required"), http.StatusBadRequest},
		{"Upstream", New(CodeUpstream, ReasonExchangeError, "exchange failed"), http.StatusBadGateway},
		{"Config", New(CodeConfig, ReasonUnconfigured, "no mapper"), http.StatusInternalServerError},
		{"Store", New(CodeStore, ReasonStoreError, "lookup failed"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("WrapsUnderlying", func(t *testing.T) {
		underlying := fmt.Errorf("connection refused")
		err := Wrap(underlying, CodeUpstream, ReasonExchangeError, "token exchange failed")

		assert.ErrorIs(t, err, underlying)
		assert.Contains(t, err.Error(), "UPSTREAM")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("NilYieldsNil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, CodeUpstream, ReasonExchangeError, "x"))
	})
}

func TestIsCode(t *testing.T) {
	err := New(CodeCSRF, ReasonInvalidState, "state mismatch")

	assert.True(t, IsCode(err, CodeCSRF))
	assert.False(t, IsCode(err, CodeUpstream))
	assert.False(t, IsCode(errors.New("plain"), CodeCSRF))

	wrapped := fmt.Errorf("handling callback: %w", err)
	assert.True(t, IsCode(wrapped, CodeCSRF))
}

func TestGetReason(t *testing.T) {
	assert.Equal(t, ReasonMissingCode, GetReason(New(CodeProtocol, ReasonMissingCode, "x")))
	assert.Equal(t, ReasonStoreError, GetReason(errors.New("plain")))
}
