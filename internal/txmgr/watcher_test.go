// internal/txmgr/watcher_test.go
package txmgr

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmarkov/txpilot/internal/gateway"
)

func TestWatcherConfirmsIncludedTransaction(t *testing.T) {
	gw := new(MockGateway)
	mgr := newTestManager(gw, new(MockSigner))
	rec := submittedRecord("a", testAddress(1), 0)
	require.NoError(t, mgr.Store().Append(rec))

	gw.On("TransactionByHash", mock.Anything, *rec.Hash).
		Return(&gateway.TxInfo{Hash: *rec.Hash, BlockNumber: big.NewInt(120)}, nil).Once()

	mgr.OnNewBlock(context.Background())

	fresh, err := mgr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, fresh.Status)
	assert.Equal(t, rec.Hash, fresh.Hash)

	// A second tick is a no-op: nothing is submitted anymore, so the
	// ledger is not queried again and the status does not move.
	mgr.OnNewBlock(context.Background())
	fresh, err = mgr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, fresh.Status)
	gw.AssertNumberOfCalls(t, "TransactionByHash", 1)
}

func TestWatcherLeavesPendingUnchanged(t *testing.T) {
	gw := new(MockGateway)
	mgr := newTestManager(gw, new(MockSigner))
	rec := submittedRecord("a", testAddress(1), 0)
	require.NoError(t, mgr.Store().Append(rec))

	gw.On("TransactionByHash", mock.Anything, *rec.Hash).
		Return(&gateway.TxInfo{Hash: *rec.Hash}, nil)

	mgr.OnNewBlock(context.Background())

	fresh, err := mgr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, fresh.Status)
	assert.Empty(t, fresh.LastWarning)
}

func TestWatcherRecordsLookupErrorWithoutTransition(t *testing.T) {
	gw := new(MockGateway)
	mgr := newTestManager(gw, new(MockSigner))
	rec := submittedRecord("a", testAddress(1), 0)
	require.NoError(t, mgr.Store().Append(rec))

	gw.On("TransactionByHash", mock.Anything, *rec.Hash).
		Return(nil, errors.New("connection refused"))

	mgr.OnNewBlock(context.Background())

	fresh, err := mgr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, fresh.Status)
	assert.Contains(t, fresh.LastWarning, "confirmation lookup failed")
}

func TestWatcherRecordsUnknownHashWarning(t *testing.T) {
	gw := new(MockGateway)
	mgr := newTestManager(gw, new(MockSigner))
	rec := submittedRecord("a", testAddress(1), 0)
	require.NoError(t, mgr.Store().Append(rec))

	gw.On("TransactionByHash", mock.Anything, *rec.Hash).Return(nil, nil)

	mgr.OnNewBlock(context.Background())

	fresh, err := mgr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, fresh.Status)
	assert.Contains(t, fresh.LastWarning, "not found")
}

func TestWatcherFailsSubmittedRecordWithoutHash(t *testing.T) {
	gw := new(MockGateway)
	mgr := newTestManager(gw, new(MockSigner))
	rec := submittedRecord("a", testAddress(1), 0)
	rec.Hash = nil
	require.NoError(t, mgr.Store().Append(rec))

	mgr.OnNewBlock(context.Background())

	fresh, err := mgr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, fresh.Status)
	assert.Equal(t, ReasonMissingHash, fresh.FailureReason)
	gw.AssertNotCalled(t, "TransactionByHash", mock.Anything, mock.Anything)
}

func TestWatcherIgnoresNonSubmittedRecords(t *testing.T) {
	gw := new(MockGateway)
	mgr := newTestManager(gw, new(MockSigner))
	require.NoError(t, mgr.Store().Append(makeRecord("u", StatusUnapproved, testNetworkID)))
	require.NoError(t, mgr.Store().Append(makeRecord("c", StatusConfirmed, testNetworkID)))

	mgr.OnNewBlock(context.Background())
	gw.AssertNotCalled(t, "TransactionByHash", mock.Anything, mock.Anything)
}
