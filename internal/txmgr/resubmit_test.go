// internal/txmgr/resubmit_test.go
package txmgr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestResubmitIgnoresAlreadyKnown(t *testing.T) {
	gw := new(MockGateway)
	mgr := newTestManager(gw, new(MockSigner))
	rec := submittedRecord("a", testAddress(1), 0)
	require.NoError(t, mgr.Store().Append(rec))

	gw.On("SendRawTransaction", mock.Anything, rec.SignedPayload).
		Return(*rec.Hash, errors.New("already known"))

	for i := 0; i < 3; i++ {
		mgr.resubmitPending(context.Background())
	}

	fresh, err := mgr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.RetryCount)
	assert.Equal(t, StatusSubmitted, fresh.Status)
	assert.Equal(t, rec.Hash, fresh.Hash, "resubmission must never change the hash")
	assert.Empty(t, fresh.LastWarning)
}

func TestResubmitStopsAtRetryLimit(t *testing.T) {
	gw := new(MockGateway)
	mgr := newTestManager(gw, new(MockSigner)) // MaxRetries: 3
	rec := submittedRecord("a", testAddress(1), 0)
	rec.RetryCount = 3
	require.NoError(t, mgr.Store().Append(rec))

	mgr.resubmitPending(context.Background())

	fresh, err := mgr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.RetryCount)
	assert.Equal(t, StatusSubmitted, fresh.Status, "stuck records stay submitted, never forced to failed")
	assert.Equal(t, stuckWarning, fresh.LastWarning)
	gw.AssertNotCalled(t, "SendRawTransaction", mock.Anything, mock.Anything)

	// Repeat cycles do not touch the record again.
	mgr.resubmitPending(context.Background())
	again, err := mgr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, fresh, again)
}

func TestResubmitRecordsOtherErrorsAsWarning(t *testing.T) {
	gw := new(MockGateway)
	mgr := newTestManager(gw, new(MockSigner))
	rec := submittedRecord("a", testAddress(1), 0)
	require.NoError(t, mgr.Store().Append(rec))

	gw.On("SendRawTransaction", mock.Anything, rec.SignedPayload).
		Return(*rec.Hash, errors.New("connection reset"))

	mgr.resubmitPending(context.Background())

	fresh, err := mgr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.RetryCount)
	assert.Equal(t, StatusSubmitted, fresh.Status)
	assert.Contains(t, fresh.LastWarning, "resubmission failed")
}

func TestResubmitCountsAttemptAfterSendReturns(t *testing.T) {
	gw := new(MockGateway)
	mgr := newTestManager(gw, new(MockSigner))
	rec := submittedRecord("a", testAddress(1), 0)
	require.NoError(t, mgr.Store().Append(rec))

	// The increment and the send are one unit: while the send is still in
	// flight no half-applied count is visible, and an interruption before
	// the send leaves the record untouched.
	midSendCount := -1
	gw.On("SendRawTransaction", mock.Anything, rec.SignedPayload).
		Run(func(mock.Arguments) {
			mid, err := mgr.Get("a")
			require.NoError(t, err)
			midSendCount = mid.RetryCount
		}).
		Return(*rec.Hash, nil)

	mgr.resubmitPending(context.Background())

	assert.Zero(t, midSendCount)
	fresh, err := mgr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.RetryCount)
}

func TestResubmitSkipsRecordConfirmedMidSend(t *testing.T) {
	gw := new(MockGateway)
	mgr := newTestManager(gw, new(MockSigner))
	rec := submittedRecord("a", testAddress(1), 0)
	require.NoError(t, mgr.Store().Append(rec))

	gw.On("SendRawTransaction", mock.Anything, rec.SignedPayload).
		Run(func(mock.Arguments) {
			_, err := mgr.Store().UpdateStatus("a", StatusSubmitted, StatusConfirmed)
			require.NoError(t, err)
		}).
		Return(*rec.Hash, nil)

	mgr.resubmitPending(context.Background())

	fresh, err := mgr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, fresh.Status, "a confirmation during the send must not be overwritten")
	assert.Zero(t, fresh.RetryCount)
}

func TestResubmitSkipsOtherStatuses(t *testing.T) {
	gw := new(MockGateway)
	mgr := newTestManager(gw, new(MockSigner))
	require.NoError(t, mgr.Store().Append(makeRecord("u", StatusUnapproved, testNetworkID)))
	require.NoError(t, mgr.Store().Append(makeRecord("c", StatusConfirmed, testNetworkID)))
	require.NoError(t, mgr.Store().Append(makeRecord("f", StatusFailed, testNetworkID)))

	mgr.resubmitPending(context.Background())
	gw.AssertNotCalled(t, "SendRawTransaction", mock.Anything, mock.Anything)
}

func TestResubmitHonorsCancellationBetweenRecords(t *testing.T) {
	gw := new(MockGateway)
	mgr := newTestManager(gw, new(MockSigner))
	require.NoError(t, mgr.Store().Append(submittedRecord("a", testAddress(1), 0)))
	require.NoError(t, mgr.Store().Append(submittedRecord("b", testAddress(1), 1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mgr.resubmitPending(ctx)

	// Cancelled before the first record: neither was touched.
	for _, id := range []string{"a", "b"} {
		rec, err := mgr.Get(id)
		require.NoError(t, err)
		assert.Zero(t, rec.RetryCount)
	}
	gw.AssertNotCalled(t, "SendRawTransaction", mock.Anything, mock.Anything)
}

func TestManagerStartStop(t *testing.T) {
	mgr := newTestManager(new(MockGateway), new(MockSigner))
	mgr.Start()
	mgr.Stop()
}
