package gateway_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"fundchain/internal/domain/entity"
	"fundchain/internal/infrastructure/gateway"
	"fundchain/internal/infrastructure/gateway/simledger"
	"fundchain/internal/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAsks(ledger *simledger.Ledger) {
	ledger.AddAsk(entity.InvestmentAsk{ID: 3, Business: "Gamma", TargetAmount: big.NewInt(300), RaisedAmount: big.NewInt(0), Status: entity.AskActive})
	ledger.AddAsk(entity.InvestmentAsk{ID: 1, Business: "Acme", TargetAmount: big.NewInt(1000), RaisedAmount: big.NewInt(200), Status: entity.AskActive})
	ledger.AddAsk(entity.InvestmentAsk{ID: 2, Business: "Beta", TargetAmount: big.NewInt(50), RaisedAmount: big.NewInt(50), Status: entity.AskStatus(9)})
}

func TestListAsks_SortedAndDecoded(t *testing.T) {
	ledger := simledger.New()
	seedAsks(ledger)
	g := gateway.NewReadGateway(ledger, simledger.PoolAddress, logger.NewNop())

	asks, err := g.ListAsks(context.Background())
	require.NoError(t, err)
	require.Len(t, asks, 3)

	assert.Equal(t, []uint64{1, 2, 3}, []uint64{asks[0].ID, asks[1].ID, asks[2].ID})
	assert.Equal(t, "Acme", asks[0].Business)
	assert.Equal(t, big.NewInt(1000), asks[0].TargetAmount)
	assert.Equal(t, big.NewInt(200), asks[0].RaisedAmount)
	assert.Equal(t, entity.AskActive, asks[0].Status)
	assert.Equal(t, "Unknown(9)", asks[1].Status.String())
}

func TestListAsks_Idempotent(t *testing.T) {
	ledger := simledger.New()
	seedAsks(ledger)
	g := gateway.NewReadGateway(ledger, simledger.PoolAddress, logger.NewNop())

	first, err := g.ListAsks(context.Background())
	require.NoError(t, err)
	second, err := g.ListAsks(context.Background())
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Equal(second[i]), "ask %d differs", first[i].ID)
	}
}

func TestListAsks_Empty(t *testing.T) {
	g := gateway.NewReadGateway(simledger.New(), simledger.PoolAddress, logger.NewNop())

	asks, err := g.ListAsks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, asks)
}

func TestListAsks_NetworkErrorIsReadFailure(t *testing.T) {
	ledger := simledger.New()
	cause := errors.New("connection refused")
	ledger.ReadErr = cause
	g := gateway.NewReadGateway(ledger, simledger.PoolAddress, logger.NewNop())

	_, err := g.ListAsks(context.Background())
	rf, ok := entity.IsReadFailure(err)
	require.True(t, ok)
	assert.Equal(t, "list_asks", rf.Op)
	assert.ErrorIs(t, err, cause)
}

func TestListAsks_ShapeMismatchIsReadFailure(t *testing.T) {
	ledger := simledger.New()
	ledger.RawAsks = common.FromHex("0x0000000000000000000000000000000000000000000000000000000000000020")
	g := gateway.NewReadGateway(ledger, simledger.PoolAddress, logger.NewNop())

	_, err := g.ListAsks(context.Background())
	_, ok := entity.IsReadFailure(err)
	assert.True(t, ok)
}

func TestListAsks_EmptyResponseIsReadFailure(t *testing.T) {
	ledger := simledger.New()
	ledger.RawAsks = []byte{}
	g := gateway.NewReadGateway(ledger, simledger.PoolAddress, logger.NewNop())

	_, err := g.ListAsks(context.Background())
	_, ok := entity.IsReadFailure(err)
	assert.True(t, ok)
}

func TestGetBalance(t *testing.T) {
	ledger := simledger.New()
	addr := common.HexToAddress("0xabc")
	ledger.SetBalance(addr, big.NewInt(12345))
	g := gateway.NewReadGateway(ledger, simledger.PoolAddress, logger.NewNop())

	bal, err := g.GetBalance(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(12345), bal)

	ledger.ReadErr = errors.New("timeout")
	_, err = g.GetBalance(context.Background(), addr)
	rf, ok := entity.IsReadFailure(err)
	require.True(t, ok)
	assert.Equal(t, "get_balance", rf.Op)
}

func TestListInvestments_FiltersByInvestor(t *testing.T) {
	ledger := simledger.New()
	seedAsks(ledger)
	alice := simledger.NewSigner("0.0.1001")
	bob := simledger.NewSigner("0.0.1002")
	w := gateway.NewWriteGateway(ledger, simledger.PoolAddress, simledger.TokenServiceAddress, 0, logger.NewNop())
	ctx := context.Background()

	for _, inv := range []struct {
		signer *simledger.Signer
		askID  uint64
		amount int64
	}{
		{alice, 1, 100},
		{bob, 3, 20},
		{alice, 3, 30},
	} {
		p, err := w.Invest(ctx, inv.signer, inv.askID, big.NewInt(inv.amount))
		require.NoError(t, err)
		_, err = p.Await(ctx)
		require.NoError(t, err)
	}

	g := gateway.NewReadGateway(ledger, simledger.PoolAddress, logger.NewNop())
	investments, err := g.ListInvestments(ctx, alice.Address())
	require.NoError(t, err)
	require.Len(t, investments, 2)
	assert.Equal(t, uint64(1), investments[0].AskID)
	assert.Equal(t, big.NewInt(100), investments[0].Amount)
	assert.Equal(t, alice.Address(), investments[0].Investor)
	assert.Equal(t, uint64(3), investments[1].AskID)
	assert.Equal(t, big.NewInt(30), investments[1].Amount)
	assert.NotEqual(t, common.Hash{}, investments[1].TxHash)
}
