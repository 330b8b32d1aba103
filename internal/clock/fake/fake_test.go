package fake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockAdvanceAndSet(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	clk := New(start)
	require.Equal(t, start, clk.Now())

	clk.Advance(2100 * time.Millisecond)
	require.Equal(t, start.Add(2100*time.Millisecond), clk.Now())

	clk.Set(start)
	require.Equal(t, start, clk.Now())
}
