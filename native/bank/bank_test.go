package bank_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"pangivault/core/events"
	"pangivault/core/state"
	"pangivault/crypto"
	"pangivault/native/bank"
	"pangivault/storage"
)

type recorder struct{ got []events.Event }

func (r *recorder) Emit(evt events.Event) { r.got = append(r.got, evt) }

func newBank(t *testing.T) (*bank.Bank, *recorder) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	b := bank.New(state.NewManager(db))
	rec := &recorder{}
	b.SetEmitter(rec)
	return b, rec
}

func TestCreditAndTransfer(t *testing.T) {
	b, rec := newBank(t)
	mint := crypto.DeriveAddress([]byte("mint"))
	alice := crypto.DeriveAddress([]byte("alice"))
	bob := crypto.DeriveAddress([]byte("bob"))

	require.NoError(t, b.Credit(alice, mint, alice, 100))
	require.NoError(t, b.Open(bob, mint, bob))
	require.NoError(t, b.Transfer(alice, bob, 40))

	bal, err := b.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(60), bal)
	bal, err = b.Balance(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(40), bal)

	require.Len(t, rec.got, 2)
	require.Equal(t, events.TypeMint, rec.got[0].EventType())
	require.Equal(t, events.TypeTransfer, rec.got[1].EventType())
}

func TestTransferFailures(t *testing.T) {
	b, _ := newBank(t)
	mint := crypto.DeriveAddress([]byte("mint"))
	other := crypto.DeriveAddress([]byte("other-mint"))
	alice := crypto.DeriveAddress([]byte("alice"))
	bob := crypto.DeriveAddress([]byte("bob"))
	carol := crypto.DeriveAddress([]byte("carol"))

	require.NoError(t, b.Credit(alice, mint, alice, 10))
	require.NoError(t, b.Open(carol, other, carol))

	require.True(t, errors.Is(b.Transfer(alice, bob, 1), bank.ErrAccountNotFound))
	require.NoError(t, b.Open(bob, mint, bob))
	require.True(t, errors.Is(b.Transfer(alice, bob, 11), bank.ErrInsufficientFunds))
	require.True(t, errors.Is(b.Transfer(alice, carol, 1), bank.ErrMintMismatch))
	require.True(t, errors.Is(b.Transfer(alice, bob, 0), bank.ErrInvalidAmount))
	require.True(t, errors.Is(b.Open(carol, mint, carol), bank.ErrMintMismatch))

	bal, err := b.Balance(crypto.DeriveAddress([]byte("nobody")))
	require.NoError(t, err)
	require.Zero(t, bal)
}
