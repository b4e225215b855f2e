package health

import (
	"context"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestHandler_healthCheck_ReportsOK(t *testing.T) {
	handler := NewHandler(slog.Default(), huma.Middlewares{})

	output, err := handler.healthCheck(context.Background(), &Input{})

	require.NoError(t, err)
	require.NotNil(t, output)
	assert.Equal(t, "OK", output.Body.Status)
}

func TestNewHandler(t *testing.T) {
	handler := NewHandler(slog.Default(), huma.Middlewares{})

	require.NotNil(t, handler)
	assert.NotNil(t, handler.log)
	assert.NotNil(t, handler.middleware)
}
