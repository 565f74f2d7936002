package consensus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitTriggerDecaysOnMissedSubmissionAndFloorsAtMin(t *testing.T) {
	w := NewWaitTrigger(100*time.Millisecond, 800*time.Millisecond)

	require.Equal(t, 800*time.Millisecond, w.DurationForNewRound(nil))

	missed := &LastRoundInfo{WasLeader: true, ReachedSubmission: false}
	require.Equal(t, 400*time.Millisecond, w.DurationForNewRound(missed))
	require.Equal(t, 200*time.Millisecond, w.DurationForNewRound(missed))
	require.Equal(t, 100*time.Millisecond, w.DurationForNewRound(missed))
	require.Equal(t, 100*time.Millisecond, w.DurationForNewRound(missed)) // floored at Min
}

func TestWaitTriggerIgnoresNonLeaderAndSuccessfulRounds(t *testing.T) {
	w := NewWaitTrigger(100*time.Millisecond, 800*time.Millisecond)

	notLeader := &LastRoundInfo{WasLeader: false, ReachedSubmission: false}
	require.Equal(t, 800*time.Millisecond, w.DurationForNewRound(notLeader))

	succeeded := &LastRoundInfo{WasLeader: true, ReachedSubmission: true}
	require.Equal(t, 800*time.Millisecond, w.DurationForNewRound(succeeded))
}

func TestWaitTriggerResetBeforeSubmissionRestoresMax(t *testing.T) {
	w := NewWaitTrigger(100*time.Millisecond, 800*time.Millisecond)
	missed := &LastRoundInfo{WasLeader: true, ReachedSubmission: false}
	w.DurationForNewRound(missed)
	w.DurationForNewRound(missed)

	w.ResetBeforeSubmission()
	require.Equal(t, 800*time.Millisecond, w.DurationForNewRound(nil))
}
