package telemetry

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestInit_Disabled(t *testing.T) {
	for _, opts := range []Options{
		{},
		{Enabled: true},
		{Enabled: false, Endpoint: "http://collector:4318"},
	} {
		shutdown, err := Init(context.Background(), opts)
		require.NoError(t, err)
		assert.NoError(t, shutdown(context.Background()))
	}
}

func TestInit_Enabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{
		Enabled:     true,
		Endpoint:    "http://127.0.0.1:4318",
		ServiceName: "smoothstreamd-test",
	})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	// Nothing was recorded, so shutdown has nothing to export.
	assert.NoError(t, shutdown(context.Background()))
}
