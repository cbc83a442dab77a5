package priority

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewValues(t *testing.T) {
	require.Equal(t, Highest, New(maxVal))
	require.Equal(t, Lowest, New(minVal))
}

func TestAddI8(t *testing.T) {
	require.Greater(t, Normal.Add(1), Normal)
	require.Less(t, Normal.Add(-1), Normal)
	require.Equal(t, Normal, Normal.Add(4).Add(-4))

	require.Equal(t, Highest, Highest.Add(1), "Highest+1 should saturate at Highest")
	require.Equal(t, Highest, Highest.Add(127), "Highest+127 should saturate at Highest")

	require.Equal(t, Lowest, Lowest.Add(-1), "Lowest-1 should saturate at Lowest")
	require.Equal(t, Lowest, Lowest.Add(-128), "Lowest-128 should saturate at Lowest")
}

func TestCheckOrder(t *testing.T) {
	require.Greater(t, Highest, High)
	require.Greater(t, High, Normal)
	require.Greater(t, Normal, Low)
	require.Greater(t, Low, Lowest)
}

func TestCheckValues(t *testing.T) {
	require.Equal(t, maxVal, Highest.Val())
	require.Equal(t, minVal, Lowest.Val())
}

func TestToSchedPriority(t *testing.T) {
	require.Equal(t, SchedLow, Lowest.ToSchedPriority())
	require.Equal(t, SchedNormal, Normal.ToSchedPriority())
	require.Equal(t, SchedHigh, Highest.ToSchedPriority())
}
