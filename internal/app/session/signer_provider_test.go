package session

import (
	"context"
	"math/big"
	"testing"

	"fundchain/internal/domain/entity"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSigner_UnavailableWhileDisconnected(t *testing.T) {
	s := newTestStore(newFakePairer(), Options{})
	provider := NewSignerProvider(s)

	signer, ok := provider.GetSigner()
	assert.False(t, ok)
	assert.Nil(t, signer)

	_, err := provider.RequireSigner()
	assert.ErrorIs(t, err, entity.ErrSignerUnavailable)
}

func TestGetSigner_Connected(t *testing.T) {
	p := newFakePairer()
	p.outcomes <- successfulPairing(nil)
	s := newTestStore(p, Options{})
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	signer, ok := NewSignerProvider(s).GetSigner()
	require.True(t, ok)
	assert.Equal(t, testAddress, signer.Address())
	assert.Equal(t, "0.0.1234", signer.AccountID())

	tx := types.NewTx(&types.LegacyTx{Nonce: 1})
	signed, err := signer.SignTx(tx, big.NewInt(296))
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), signed.Hash())
}

func TestGetSigner_StaleAfterDisconnect(t *testing.T) {
	p := newFakePairer()
	p.outcomes <- successfulPairing(nil)
	s := newTestStore(p, Options{})
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	signer, ok := NewSignerProvider(s).GetSigner()
	require.True(t, ok)

	s.Disconnect()
	_, err = signer.SignTx(types.NewTx(&types.LegacyTx{}), big.NewInt(296))
	assert.ErrorIs(t, err, entity.ErrSignerUnavailable)

	p.outcomes <- successfulPairing(nil)
	_, err = s.Connect(context.Background())
	require.NoError(t, err)
	_, err = signer.SignTx(types.NewTx(&types.LegacyTx{}), big.NewInt(296))
	assert.ErrorIs(t, err, entity.ErrSignerUnavailable, "signer from an earlier session must stay dead")
}
