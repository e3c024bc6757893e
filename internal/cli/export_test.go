package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBound(t *testing.T) {
	got, err := parseBound("2025-11-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseBound("2025-11-01T14:30:00+01:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 1, 13, 30, 0, 0, time.UTC), got)

	_, err = parseBound("")
	require.Error(t, err)
	_, err = parseBound("yesterday")
	require.Error(t, err)
}
