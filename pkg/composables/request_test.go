package composables

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestUseLogger_FallsBackToProcessLogger(t *testing.T) {
	entry := UseLogger(context.Background())
	require.NotNil(t, entry)
	require.Equal(t, logrus.StandardLogger(), entry.Logger)
}

func TestUseLogger_PrefersInstalledEntry(t *testing.T) {
	installed := logrus.New().WithField("request_id", "abc123")
	ctx := WithLogger(context.Background(), installed)
	require.Same(t, installed, UseLogger(ctx))
}

func TestUseParams_RoundTrip(t *testing.T) {
	_, ok := UseParams(context.Background())
	require.False(t, ok)

	params := &Params{IP: "10.0.0.1", RequestID: "abc123"}
	got, ok := UseParams(WithParams(context.Background(), params))
	require.True(t, ok)
	require.Same(t, params, got)
}
