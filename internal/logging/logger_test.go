package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewServiceLogger ensures the production logger configuration succeeds.
func TestNewServiceLogger(t *testing.T) {
	t.Parallel()

	logger, err := NewService(false, "hvac-leadsite", "test")
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

func TestMaskContactDetails(t *testing.T) {
	t.Parallel()

	require.Equal(t, "j***@example.com", MaskEmail(" jane.doe@example.com "))
	require.Equal(t, "***", MaskEmail("nonsense"))
	require.Empty(t, MaskEmail(""))
	require.Equal(t, "***0142", MaskPhone("(330) 555-0142"))
	require.Equal(t, "***", MaskPhone("12"))
}
