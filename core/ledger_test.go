package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pangivault/core/events"
	"pangivault/crypto"
	"pangivault/native/common"
	"pangivault/native/vault"
	"pangivault/storage"
)

const (
	ledgerStart = int64(1_700_000_000)
	ledgerDay   = int64(86_400)
)

type ledgerFixture struct {
	ledger    *Ledger
	db        *storage.MemDB
	rec       *recordingEmitter
	now       int64
	authority crypto.PublicKey
	funder    crypto.PublicKey
	tokenMint crypto.PublicKey
	creator   crypto.PublicKey
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		db:        storage.NewMemDB(),
		rec:       &recordingEmitter{},
		now:       ledgerStart,
		authority: addr("authority"),
		funder:    addr("funder"),
		tokenMint: addr("token"),
		creator:   addr("creator"),
	}
	f.ledger = NewLedger(f.db, f.rec)
	f.ledger.SetNowFunc(func() int64 { return f.now })
	applied, err := f.ledger.ApplyGenesis(context.Background(), []Allocation{
		{Owner: f.authority, Mint: f.tokenMint, Amount: 10_000_000_000},
		{Owner: f.funder, Mint: f.tokenMint, Amount: 10_000_000_000},
	})
	require.NoError(t, err)
	require.True(t, applied)
	return f
}

func (f *ledgerFixture) supply(t *testing.T, vaults ...*vault.Vault) uint64 {
	t.Helper()
	var total uint64
	for _, owner := range []crypto.PublicKey{f.authority, f.funder} {
		bal, err := f.ledger.Balance(owner, f.tokenMint)
		require.NoError(t, err)
		total += bal
	}
	for _, v := range vaults {
		rec, err := f.ledger.Reconcile(context.Background(), v.Address)
		require.NoError(t, err)
		total += rec.CustodyBalance
	}
	return total
}

func TestLedgerLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	v, err := f.ledger.CreateVault(ctx, f.authority, f.tokenMint, f.creator, 1000, 100*ledgerDay)
	require.NoError(t, err)
	require.Equal(t, f.supply(t, v), uint64(20_000_000_000))

	_, err = f.ledger.FundVault(ctx, f.funder, v.Address, 1_000_000_000)
	require.NoError(t, err)
	_, err = f.ledger.Deposit(ctx, f.authority, v.Address, 2_000_000_000)
	require.NoError(t, err)

	f.now = ledgerStart + 50*ledgerDay
	receipt, err := f.ledger.Withdraw(ctx, f.authority, v.Address, 500_000_000)
	require.NoError(t, err)
	require.True(t, receipt.EarlyUnlock)

	f.now = ledgerStart + 100*ledgerDay
	claim, err := f.ledger.Claim(ctx, f.authority, v.Address)
	require.NoError(t, err)
	require.NotZero(t, claim.Amount)

	preview, err := f.ledger.Preview(ctx, v.Address, f.authority)
	require.NoError(t, err)
	require.Equal(t, vault.PhaseUnlockable, preview.Phase)

	rec, err := f.ledger.Reconcile(ctx, v.Address)
	require.NoError(t, err)
	require.True(t, rec.Balanced())
	require.Equal(t, uint64(1_500_000_000), rec.TotalStaked)
	require.Equal(t, 1, rec.Holders)

	require.Equal(t, uint64(20_000_000_000), f.supply(t, v), "no value created or destroyed")

	stored, err := f.ledger.Vault(ctx, v.Address)
	require.NoError(t, err)
	require.Equal(t, receipt.PenaltyToPool, stored.TotalPenaltiesCollected)

	vaults, err := f.ledger.Vaults()
	require.NoError(t, err)
	require.Equal(t, []crypto.PublicKey{v.Address}, vaults)
}

func TestLedgerFailedOperationHasNoEffect(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	v, err := f.ledger.CreateVault(ctx, f.authority, f.tokenMint, f.creator, 1000, ledgerDay)
	require.NoError(t, err)
	_, err = f.ledger.Deposit(ctx, f.authority, v.Address, 1_000_000_000)
	require.NoError(t, err)

	before := f.rec.count()
	f.now += 10
	_, err = f.ledger.Deposit(ctx, f.authority, v.Address, 1_000_000_000)
	require.ErrorIs(t, err, vault.ErrDepositCooldownActive)
	require.Equal(t, before, f.rec.count(), "rejected operations emit nothing")

	bal, err := f.ledger.Balance(f.authority, f.tokenMint)
	require.NoError(t, err)
	require.Equal(t, uint64(9_000_000_000), bal)

	_, err = f.ledger.Deposit(ctx, f.authority, addr("missing"), 1_000_000_000)
	require.ErrorIs(t, err, vault.ErrVaultNotFound)
}

type failingBatchDB struct {
	*storage.MemDB
	fail bool
}

type failingBatch struct {
	storage.Batch
	db *failingBatchDB
}

func (b failingBatch) Write() error {
	if b.db.fail {
		return errors.New("disk full")
	}
	return b.Batch.Write()
}

func (d *failingBatchDB) NewBatch() storage.Batch {
	return failingBatch{Batch: d.MemDB.NewBatch(), db: d}
}

func TestLedgerCommitFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	db := &failingBatchDB{MemDB: storage.NewMemDB()}
	rec := &recordingEmitter{}
	l := NewLedger(db, rec)
	l.SetNowFunc(func() int64 { return ledgerStart })
	owner, mint, creator := addr("owner"), addr("mint"), addr("creator")
	require.NoError(t, l.Mint(ctx, owner, mint, 5_000_000))
	v, err := l.CreateVault(ctx, owner, mint, creator, 500, ledgerDay)
	require.NoError(t, err)

	db.fail = true
	before := rec.count()
	_, err = l.Deposit(ctx, owner, v.Address, 2_000_000)
	require.Error(t, err)
	require.Equal(t, before, rec.count())

	db.fail = false
	bal, err := l.Balance(owner, mint)
	require.NoError(t, err)
	require.Equal(t, uint64(5_000_000), bal)
	_, err = l.Stake(ctx, v.Address, owner)
	require.ErrorIs(t, err, vault.ErrStakeNotFound)
}

func TestLedgerGenesisIsAppliedOnce(t *testing.T) {
	f := newLedgerFixture(t)
	applied, err := f.ledger.ApplyGenesis(context.Background(), []Allocation{
		{Owner: f.authority, Mint: f.tokenMint, Amount: 1},
	})
	require.NoError(t, err)
	require.False(t, applied)
	bal, err := f.ledger.Balance(f.authority, f.tokenMint)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000_000_000), bal)
}

func TestLedgerPauseAndParams(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	pauses := common.NewPauseSet(vault.ModuleName)
	f.ledger.SetPauses(pauses)

	_, err := f.ledger.CreateVault(ctx, f.authority, f.tokenMint, f.creator, 1000, ledgerDay)
	require.ErrorIs(t, err, vault.ErrModulePaused)
	pauses.Set(vault.ModuleName, false)

	params := vault.DefaultParams()
	params.MinStake = 0
	require.Error(t, f.ledger.SetParams(params))
	params.MinStake = 10
	require.NoError(t, f.ledger.SetParams(params))

	v, err := f.ledger.CreateVault(ctx, f.authority, f.tokenMint, f.creator, 1000, ledgerDay)
	require.NoError(t, err)
	_, err = f.ledger.Deposit(ctx, f.authority, v.Address, 10)
	require.NoError(t, err)

	require.NoError(t, f.ledger.CheckCustodyAccount(v.Address, vault.CustodyAddress(v.Address)))
	require.ErrorIs(t, f.ledger.CheckCustodyAccount(v.Address, f.authority), vault.ErrInvalidVaultAccount)
}

func TestLedgerEventsReachEmitterInOrder(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	v, err := f.ledger.CreateVault(ctx, f.authority, f.tokenMint, f.creator, 1000, ledgerDay)
	require.NoError(t, err)
	_, err = f.ledger.Deposit(ctx, f.authority, v.Address, 1_000_000)
	require.NoError(t, err)

	var types []string
	for _, evt := range f.rec.events {
		types = append(types, evt.EventType())
	}
	require.Equal(t, []string{
		events.TypeMint,
		events.TypeMint,
		events.TypeVaultCreated,
		events.TypeTransfer,
		events.TypeVaultDeposited,
	}, types)
}

func TestLedgerSamplesClockAfterLocking(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	v, err := f.ledger.CreateVault(ctx, f.authority, f.tokenMint, f.creator, 1000, ledgerDay)
	require.NoError(t, err)
	_, err = f.ledger.FundVault(ctx, f.funder, v.Address, 1_000_000_000)
	require.NoError(t, err)
	_, err = f.ledger.Deposit(ctx, f.authority, v.Address, 1_000_000_000)
	require.NoError(t, err)

	var (
		clock atomic.Int64
		reads atomic.Int32
	)
	clock.Store(ledgerStart + 2*ledgerDay)
	f.ledger.SetNowFunc(func() int64 {
		reads.Add(1)
		return clock.Load()
	})

	// Hold the position's records as a competing unit would.
	keys := sortKeys(holderKeys(v, f.authority))
	release := f.ledger.exec.locks.acquire(keys)

	var receipt *vault.ClaimReceipt
	done := make(chan error, 1)
	go func() {
		var err error
		receipt, err = f.ledger.Claim(ctx, f.authority, v.Address)
		done <- err
	}()
	require.Eventually(t, func() bool {
		return f.ledger.exec.locks.waiters(keys[0]) == 2
	}, time.Second, time.Millisecond)
	require.Zero(t, reads.Load(), "clock sampled while the unit was still queued")

	later := ledgerStart + 2*ledgerDay + 4_000
	clock.Store(later)
	release()
	require.NoError(t, <-done)
	require.Equal(t, later, receipt.ClaimedAt)

	stake, err := f.ledger.Stake(ctx, v.Address, f.authority)
	require.NoError(t, err)
	require.Equal(t, later, stake.LastClaim)
}

// stakeWatcher checks a position after every committed unit. Emit runs while
// the committing unit still holds its locks, so observations follow commit
// order.
type stakeWatcher struct {
	mu           sync.Mutex
	ledger       *Ledger
	vault        crypto.PublicKey
	holder       crypto.PublicKey
	lastClaim    int64
	totalClaimed uint64
	violations   []string
}

func (w *stakeWatcher) watch(l *Ledger, vaultAddr, holder crypto.PublicKey) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ledger, w.vault, w.holder = l, vaultAddr, holder
}

func (w *stakeWatcher) Emit(events.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ledger == nil {
		return
	}
	stake, ok, err := w.ledger.exec.Read().StakeGet(w.vault, w.holder)
	if err != nil || !ok {
		return
	}
	if stake.LastClaim < w.lastClaim {
		w.violations = append(w.violations, fmt.Sprintf("last_claim %d after %d", stake.LastClaim, w.lastClaim))
	}
	if stake.TotalClaimed < w.totalClaimed {
		w.violations = append(w.violations, fmt.Sprintf("total_claimed %d after %d", stake.TotalClaimed, w.totalClaimed))
	}
	w.lastClaim, w.totalClaimed = stake.LastClaim, stake.TotalClaimed
}

func TestLedgerContendedUnitsStayMonotonic(t *testing.T) {
	ctx := context.Background()
	authority, funder := addr("authority"), addr("funder")
	tokenMint, creator := addr("token"), addr("creator")

	watcher := &stakeWatcher{}
	l := NewLedger(storage.NewMemDB(), watcher)
	var ticks atomic.Int64
	l.SetNowFunc(func() int64 { return ledgerStart + ticks.Add(1) })
	params := vault.DefaultParams()
	params.ClaimCooldown = 0
	params.DepositCooldown = 0
	require.NoError(t, l.SetParams(params))

	_, err := l.ApplyGenesis(ctx, []Allocation{
		{Owner: authority, Mint: tokenMint, Amount: 10_000_000_000},
		{Owner: funder, Mint: tokenMint, Amount: 10_000_000_000},
	})
	require.NoError(t, err)
	v, err := l.CreateVault(ctx, authority, tokenMint, creator, 10_000, vault.MinLockDuration)
	require.NoError(t, err)
	_, err = l.FundVault(ctx, funder, v.Address, 5_000_000_000)
	require.NoError(t, err)
	_, err = l.Deposit(ctx, authority, v.Address, 100_000_000)
	require.NoError(t, err)
	ticks.Add(vault.MinLockDuration)
	watcher.watch(l, v.Address, authority)

	const (
		workers = 24
		rounds  = 10
		step    = uint64(1_000_000)
	)
	var (
		wg        sync.WaitGroup
		deposits  atomic.Int64
		withdraws atomic.Int64
		claims    atomic.Int64
		failures  = make(chan error, workers*rounds)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				var err error
				switch (i + r) % 3 {
				case 0:
					_, err = l.Claim(ctx, authority, v.Address)
					if err == nil {
						claims.Add(1)
					}
				case 1:
					_, err = l.Deposit(ctx, authority, v.Address, step)
					if err == nil {
						deposits.Add(1)
					}
				default:
					_, err = l.Withdraw(ctx, authority, v.Address, step)
					if err == nil {
						withdraws.Add(1)
					}
				}
				if err != nil && vault.KindOf(err) == vault.KindInternal {
					failures <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(failures)
	for err := range failures {
		require.NoError(t, err)
	}

	require.Empty(t, watcher.violations)
	require.NotZero(t, claims.Load())

	rec, err := l.Reconcile(ctx, v.Address)
	require.NoError(t, err)
	require.True(t, rec.Balanced())
	require.Equal(t, rec.SumOfStakes, rec.TotalStaked)
	expected := 100_000_000 + uint64(deposits.Load())*step - uint64(withdraws.Load())*step
	require.Equal(t, expected, rec.TotalStaked)
}

func TestLedgerDisjointVaultsRunInParallel(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	first, err := f.ledger.CreateVault(ctx, f.authority, f.tokenMint, f.creator, 1000, ledgerDay)
	require.NoError(t, err)
	second, err := f.ledger.CreateVault(ctx, f.funder, f.tokenMint, addr("creator-2"), 1000, ledgerDay)
	require.NoError(t, err)

	var stalled atomic.Bool
	entered := make(chan struct{})
	resume := make(chan struct{})
	f.ledger.SetNowFunc(func() int64 {
		if stalled.CompareAndSwap(false, true) {
			close(entered)
			<-resume
		}
		return ledgerStart
	})

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.ledger.Deposit(ctx, f.authority, first.Address, 1_000_000)
		firstDone <- err
	}()
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		close(resume)
		t.Fatal("first unit never started")
	}

	secondDone := make(chan error, 1)
	go func() {
		_, err := f.ledger.Deposit(ctx, f.funder, second.Address, 1_000_000)
		secondDone <- err
	}()
	select {
	case err := <-secondDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		close(resume)
		t.Fatal("unit on a disjoint vault waited for an unrelated unit")
	}
	close(resume)
	require.NoError(t, <-firstDone)

	for _, v := range []*vault.Vault{first, second} {
		rec, err := f.ledger.Reconcile(ctx, v.Address)
		require.NoError(t, err)
		require.Equal(t, uint64(1_000_000), rec.TotalStaked)
	}
}
