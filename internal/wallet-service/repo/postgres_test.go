package repo_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/updown-rounds-poc/internal/shared/testutil"
	"github.com/radieske/updown-rounds-poc/internal/wallet-service/repo"
)

func TestPostgres_LedgerLifecycle(t *testing.T) {
	pg := testutil.SetupTestDB(t)
	ctx := context.Background()
	r := repo.NewPostgres(pg)

	_, bal, err := r.Deposit(ctx, "alice", 3_000_000, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3_000_000), bal)

	_, bal, err = r.Deposit(ctx, "alice", 3_000_000, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3_000_000), bal, "replayed deposit must not credit twice")

	_, err = r.Debit(ctx, "alice", 2_000_000, repo.DebitRef{RoundID: "r-1", WagerID: "w-1"})
	require.NoError(t, err)

	_, err = r.Debit(ctx, "alice", 2_000_000, repo.DebitRef{RoundID: "r-1", WagerID: "w-2"})
	require.ErrorIs(t, err, repo.ErrInsufficientFunds)

	batch := repo.SettlementBatch{
		RoundID:   "r-1",
		Credits:   []repo.Credit{{ParticipantID: "alice", AmountMicros: 4_392_000, Type: repo.OpSettlementCredit, WagerID: "w-1"}},
		FeeMicros: 160_000,
	}
	require.NoError(t, r.ApplySettlement(ctx, batch))
	require.ErrorIs(t, r.ApplySettlement(ctx, batch), repo.ErrSettlementAlreadyApplied)

	bal, err = r.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000+4_392_000), bal)

	fee, err := r.Balance(ctx, repo.PlatformAccount)
	require.NoError(t, err)
	assert.Equal(t, int64(160_000), fee)

	txs, err := r.Transactions(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, txs, 3)
}

func TestPostgres_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	pg := testutil.SetupTestDB(t)
	ctx := context.Background()
	r := repo.NewPostgres(pg)

	_, _, err := r.Deposit(ctx, "bob", 3_000_000, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Debit(ctx, "bob", 1_000_000, repo.DebitRef{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, repo.ErrInsufficientFunds)
	}
	assert.Equal(t, 3, ok)
}

func TestPostgres_WithdrawWithoutWalletIsInsufficient(t *testing.T) {
	pg := testutil.SetupTestDB(t)
	r := repo.NewPostgres(pg)

	_, _, err := r.Withdraw(context.Background(), "nobody", 1_000_000, "w-0")
	require.ErrorIs(t, err, repo.ErrInsufficientFunds)
}
