package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusRoundTrip(t *testing.T) {
	for i := JobStatusUninitialized; i <= JobStatusDisabled; i++ {
		name := i.String()
		got, err := JobStatusFromString(name)
		require.NoError(t, err)
		assert.Equal(t, i, got, "round trip via string %q", name)

		code := i.ToInt()
		got2, err := JobStatusFromInt(code)
		require.NoError(t, err)
		assert.Equal(t, i, got2, "round trip via int %d", code)
	}
}

func TestJobStatusFromStringInvalid(t *testing.T) {
	_, err := JobStatusFromString("not-a-status")
	assert.Error(t, err)
}

func TestJobStatusIsComplete(t *testing.T) {
	complete := map[JobStatus]bool{
		JobStatusCompleted:  true,
		JobStatusFailed:     true,
		JobStatusCanceled:   true,
		JobStatusTerminated: true,
		JobStatusDisabled:   false,
		JobStatusRunning:    false,
		JobStatusReady:      false,
	}
	for status, want := range complete {
		assert.Equal(t, want, status.IsComplete(), "%v.IsComplete()", status)
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	assert.True(t, JobStatusDisabled.IsTerminal())
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.False(t, JobStatusRunning.IsTerminal())
}

func TestJobStatusIsActive(t *testing.T) {
	assert.True(t, JobStatusPending.IsActive())
	assert.False(t, JobStatusCompleted.IsActive())
	assert.False(t, JobStatusDisabled.IsActive())
}

func TestJobStatusJSON(t *testing.T) {
	b, err := JobStatusRunning.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"running"`, string(b))

	var s JobStatus
	require.NoError(t, s.UnmarshalJSON([]byte(`"failed"`)))
	assert.Equal(t, JobStatusFailed, s)
}

func TestJobStatusScanValue(t *testing.T) {
	v, err := JobStatusSubmitted.Value()
	require.NoError(t, err)
	assert.Equal(t, int64(JobStatusSubmitted), v)

	var s JobStatus
	require.NoError(t, s.Scan(int64(JobStatusCanceled)))
	assert.Equal(t, JobStatusCanceled, s)

	var s2 JobStatus
	require.NoError(t, s2.Scan(nil))
	assert.Equal(t, JobStatusUninitialized, s2)
}
