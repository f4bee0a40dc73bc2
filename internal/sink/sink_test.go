package sink_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xledger/fenbook/internal/order"
	"github.com/0xledger/fenbook/internal/sink"
)

func TestFilter_DropsStateAndRejected(t *testing.T) {
	now := time.Now().UTC()
	o := order.NewBuy(now, 5, decimal.RequireFromString("1"))

	events := []order.Event{
		order.Accepted(now, o),
		order.Rejected(now, "order not found"),
		order.State(now, order.StateSnapshot{}),
		order.Canceled(now, o),
	}

	filtered := sink.Filter(events)
	require.Len(t, filtered, 2)
	assert.Equal(t, order.EventAccepted, filtered[0].Kind)
	assert.Equal(t, order.EventCanceled, filtered[1].Kind)
}

func TestFilter_EmptyInput(t *testing.T) {
	assert.Empty(t, sink.Filter(nil))
}

func TestSQLite_CommitAndPersist(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "events.db")
	db, err := sink.OpenSQLite(dsn)
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	buy := order.NewBuy(now, 5, decimal.RequireFromString("2"))
	sell := order.NewSell(now, 5, decimal.RequireFromString("2"))

	events := []order.Event{
		order.Accepted(now, buy),
		order.Filled(now, sell, buy),
		order.Canceled(now, sell),
	}

	err = db.Commit(context.Background(), "AAPL", events)
	require.NoError(t, err)
}

func TestSQLite_CommitEmptyBatchIsNoop(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "events.db")
	db, err := sink.OpenSQLite(dsn)
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Commit(context.Background(), "AAPL", nil))
}

func TestSQLite_EventIDResumesAcrossReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "events.db")
	now := time.Now().UTC()
	o := order.NewBuy(now, 5, decimal.RequireFromString("2"))

	db, err := sink.OpenSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Commit(context.Background(), "AAPL", []order.Event{
		order.Accepted(now, o),
		order.Canceled(now, o),
	}))
	require.NoError(t, db.Close())

	reopened, err := sink.OpenSQLite(dsn)
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.Commit(context.Background(), "AAPL", []order.Event{
		order.Accepted(now, o),
	}))

	maxID, err := reopened.MaxEventIDForTesting(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), maxID, "event_id counter must resume from the highest id already on disk")
}

