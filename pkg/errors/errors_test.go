package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("query 3: %w", ErrEmptyQuery), true},
		{fmt.Errorf("query 3: %w", ErrTimeout), true},
		{fmt.Errorf("doc 9: %w", ErrMalformedStatistics), true},
		{fmt.Errorf("opening index: %w", ErrConfiguration), false},
		{context.Canceled, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Recoverable(tt.err), tt.err.Error())
	}
}

func TestHTTPStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusTeapot, HTTPStatusCode(New(ErrInternal, http.StatusTeapot, "short and stout")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatusCode(fmt.Errorf("x: %w", ErrUnknownRanker)))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatusCode(ErrTimeout))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusCode(fmt.Errorf("boom")))

	err := Newf(ErrInvalidInput, http.StatusBadRequest, "k=%d", -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: k=-1", err.Error())
}
