package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsType_UnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("page 3: %w", NewRateLimitError("realtor", 6))

	assert.True(t, IsType(err, ErrorTypeRateLimited))
	assert.False(t, IsType(err, ErrorTypeExternal))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeRateLimited))
}

func TestAppError_Messages(t *testing.T) {
	assert.Equal(t, "EXTERNAL: realtor returned status 503", NewUpstreamStatusError("realtor", 503).Error())
	assert.Equal(t, 503, NewUpstreamStatusError("realtor", 503).StatusCode)

	wrapped := NewExternalError("request failed", fmt.Errorf("connection reset"))
	assert.Equal(t, "EXTERNAL: request failed: connection reset", wrapped.Error())
	assert.EqualError(t, wrapped.Unwrap(), "connection reset")
}
