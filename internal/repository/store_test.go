package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/gate-checkin/internal/config"
	"github.com/spec-kit/gate-checkin/internal/domain"
	"github.com/spec-kit/gate-checkin/internal/persistence"
)

func setupTestDB(t *testing.T) *persistence.Database {
	t.Helper()
	ctx := context.Background()
	db, err := persistence.Open(ctx, config.StoreConfig{
		Driver: persistence.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, persistence.RunMigrations(ctx, db, zap.NewNop()))
	t.Cleanup(func() { db.Close() })
	return db
}

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func TestTxManager_RollbackOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tx := NewTxManager(db)
	regs := NewRegistrationRepository(db)
	ledger := NewCheckinRepository(db)

	require.NoError(t, regs.Create(ctx, &domain.Registration{
		TicketID: "T-1", EventID: "e1", Name: "Ada", Email: "ada@example.com", TicketType: "General", CreatedAt: testNow,
	}))

	boom := errors.New("boom")
	err := tx.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, ledger.Append(ctx, &domain.Checkin{TicketID: "T-1", At: testNow}))
		changed, err := regs.SetCheckedIn(ctx, "T-1")
		require.NoError(t, err)
		require.True(t, changed)
		return boom
	})
	require.ErrorIs(t, err, boom)

	all, err := ledger.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	reg, err := regs.GetByTicketID(ctx, "T-1")
	require.NoError(t, err)
	assert.False(t, reg.CheckedIn)
}

func TestTxManager_NestedJoinsOuter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tx := NewTxManager(db)
	ledger := NewCheckinRepository(db)

	err := tx.WithTx(ctx, func(ctx context.Context) error {
		return tx.WithTx(ctx, func(ctx context.Context) error {
			return ledger.Append(ctx, &domain.Checkin{TicketID: "T-9", At: testNow})
		})
	})
	require.NoError(t, err)

	_, err = ledger.GetByTicketID(ctx, "T-9")
	assert.NoError(t, err)
}
