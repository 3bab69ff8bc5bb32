package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/stockroom/apps/server/internal/platform/telemetry"
)

func TestNew_Disabled_IsNoop(t *testing.T) {
	tel, err := telemetry.New(context.Background(), telemetry.Options{})
	require.NoError(t, err)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestServiceName(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	assert.Equal(t, "stockroom-server", telemetry.ServiceName(""))
	assert.Equal(t, "stockroom-eu", telemetry.ServiceName("stockroom-eu"))

	t.Setenv("OTEL_SERVICE_NAME", "from-env")
	assert.Equal(t, "from-env", telemetry.ServiceName("stockroom-eu"))
}
