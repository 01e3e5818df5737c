package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"fundchain/internal/domain/entity"
	"fundchain/internal/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticKey struct {
	key *ecdsa.PrivateKey
	err error
}

func (s staticKey) Load() (*ecdsa.PrivateKey, error) { return s.key, s.err }

type mapResolver map[common.Address]string

func (m mapResolver) ResolveAccountID(_ context.Context, addr common.Address) (string, error) {
	if id, ok := m[addr]; ok {
		return id, nil
	}
	return "", errors.New("account not found")
}

func TestPair_Success(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	p := NewLocalPairer(staticKey{key: key}, mapResolver{addr: "0.0.4321"}, logger.NewNop())

	pairing, err := p.Pair(context.Background(), entity.AppMetadata{Name: "FundChain"})
	require.NoError(t, err)
	assert.Equal(t, "0.0.4321", pairing.AccountID)
	assert.Equal(t, addr, pairing.Address)
	assert.Equal(t, addr, pairing.Signer.Address())
	assert.Equal(t, "0.0.4321", pairing.Signer.AccountID())

	to := common.HexToAddress("0x01")
	signed, err := pairing.Signer.SignTx(types.NewTx(&types.LegacyTx{Nonce: 3, To: &to, Gas: 21000, GasPrice: big.NewInt(1)}), big.NewInt(296))
	require.NoError(t, err)
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(296)), signed)
	require.NoError(t, err)
	assert.Equal(t, addr, sender)

	pairing.Close()
	_, err = pairing.Signer.SignTx(types.NewTx(&types.LegacyTx{}), big.NewInt(296))
	assert.ErrorIs(t, err, errPairingClosed)
}

func TestPair_Failures(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = NewLocalPairer(staticKey{err: errors.New("no file")}, mapResolver{}, logger.NewNop()).
		Pair(context.Background(), entity.AppMetadata{})
	assert.ErrorContains(t, err, "no file")

	_, err = NewLocalPairer(staticKey{key: key}, mapResolver{}, logger.NewNop()).
		Pair(context.Background(), entity.AppMetadata{})
	assert.ErrorContains(t, err, "account not found")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewLocalPairer(staticKey{key: key}, mapResolver{}, logger.NewNop()).Pair(ctx, entity.AppMetadata{})
	assert.ErrorIs(t, err, context.Canceled)
}
