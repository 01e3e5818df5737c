package restapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fundchain/internal/app/port"
	"fundchain/internal/app/service"
	"fundchain/internal/app/session"
	"fundchain/internal/domain/entity"
	"fundchain/internal/infrastructure/gateway"
	"fundchain/internal/infrastructure/gateway/simledger"
	networkdefinition "fundchain/internal/infrastructure/network/definition"
	"fundchain/internal/infrastructure/restapi"
	"fundchain/internal/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticPairer struct {
	signer *simledger.Signer
	err    error
}

func (p staticPairer) Pair(context.Context, entity.AppMetadata) (*port.Pairing, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &port.Pairing{
		AccountID: p.signer.AccountID(),
		Address:   p.signer.Address(),
		Signer:    p.signer,
	}, nil
}

type apiHarness struct {
	ledger *simledger.Ledger
	signer *simledger.Signer
	store  *session.Store
	router *gin.Engine
}

func newAPI(t *testing.T, pairErr error, confirm time.Duration) *apiHarness {
	t.Helper()
	ledger := simledger.New()
	signer := simledger.NewSigner("0.0.1234")
	store := session.NewStore(staticPairer{signer: signer, err: pairErr}, session.Options{}, logger.NewNop())
	hub := service.NewEventHub(logger.NewNop())
	unsubscribe := store.OnChange(hub.PublishSession)
	t.Cleanup(unsubscribe)

	reader := gateway.NewReadGateway(ledger, simledger.PoolAddress, logger.NewNop())
	writer := gateway.NewWriteGateway(ledger, simledger.PoolAddress, simledger.TokenServiceAddress, confirm, logger.NewNop())
	sync := service.NewAskSynchronizer(reader, writer, session.NewSignerProvider(store), store, hub, logger.NewNop())

	net := networkdefinition.Testnet
	h := restapi.NewHandler(store, sync, net, logger.NewNop())
	stream := restapi.NewEventStream(hub, store, net, nil, logger.NewNop())
	router := restapi.SetupRouter(h, stream, restapi.RouterOptions{MetricsEnabled: true})
	return &apiHarness{ledger: ledger, signer: signer, store: store, router: router}
}

func (a *apiHarness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestSession_ConnectAndDisconnect(t *testing.T) {
	a := newAPI(t, nil, 0)
	a.ledger.SetBalance(a.signer.Address(), new(big.Int).Mul(big.NewInt(25), big.NewInt(1e17)))

	rec := a.do(t, http.MethodGet, "/api/v1/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disconnected", decode[restapi.SessionResponse](t, rec).Status)

	rec = a.do(t, http.MethodPost, "/api/v1/session/connect", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decode[restapi.SessionResponse](t, rec)
	assert.Equal(t, "connected", sess.Status)
	assert.Equal(t, "0.0.1234", sess.AccountID)
	assert.Equal(t, a.signer.Address().Hex(), sess.Address)

	rec = a.do(t, http.MethodPost, "/api/v1/session/balance/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sess = decode[restapi.SessionResponse](t, rec)
	require.NotNil(t, sess.Balance)
	assert.Equal(t, "2.5000 HBAR", sess.Balance.FormattedBalance)
	assert.Equal(t, "2500000000000000000", sess.Balance.BaseUnits)

	rec = a.do(t, http.MethodPost, "/api/v1/session/disconnect", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sess = decode[restapi.SessionResponse](t, rec)
	assert.Equal(t, "disconnected", sess.Status)
	assert.Empty(t, sess.AccountID)
	assert.Nil(t, sess.Balance)
}

func TestSession_ConnectFailureIsBadGateway(t *testing.T) {
	a := newAPI(t, errors.New("user rejected pairing"), 0)

	rec := a.do(t, http.MethodPost, "/api/v1/session/connect", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[restapi.ErrorResponse](t, rec)
	assert.Equal(t, "pairing_failure", resp.Code)
	require.NotNil(t, resp.Session)
	assert.Equal(t, "failed", resp.Session.Status)
}

func TestAsks_ListLoadsOnFirstUse(t *testing.T) {
	a := newAPI(t, nil, 0)
	a.ledger.AddAsk(entity.InvestmentAsk{ID: 2, Business: "Beta", TargetAmount: big.NewInt(5), RaisedAmount: big.NewInt(0)})
	a.ledger.AddAsk(entity.InvestmentAsk{ID: 1, Business: "Acme", TargetAmount: big.NewInt(1000), RaisedAmount: big.NewInt(200), Status: entity.AskStatus(9)})

	rec := a.do(t, http.MethodGet, "/api/v1/asks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[restapi.AskListResponse](t, rec)
	require.Len(t, list.Asks, 2)
	assert.Equal(t, uint64(1), list.Asks[0].ID)
	assert.Equal(t, "1000", list.Asks[0].TargetAmount)
	assert.Equal(t, "Unknown(9)", list.Asks[0].Status)
	assert.Equal(t, uint8(9), list.Asks[0].StatusCode)
	assert.False(t, list.Asks[0].StatusKnown)
	assert.True(t, list.Asks[1].StatusKnown)
	assert.NotNil(t, list.RefreshedAt)
	reads := a.ledger.Reads()

	rec = a.do(t, http.MethodGet, "/api/v1/asks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reads, a.ledger.Reads())
}

func TestAsks_ReadFailureIsBadGateway(t *testing.T) {
	a := newAPI(t, nil, 0)
	a.ledger.ReadErr = errors.New("relay down")

	rec := a.do(t, http.MethodPost, "/api/v1/asks/refresh", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[restapi.ErrorResponse](t, rec)
	assert.Equal(t, "read_failure", resp.Code)
	assert.Equal(t, "list_asks", resp.Reason)
}

func TestFund_FillsTargetStatusUnchanged(t *testing.T) {
	a := newAPI(t, nil, 0)
	a.ledger.AddAsk(entity.InvestmentAsk{ID: 1, Business: "Acme", TargetAmount: big.NewInt(1000), RaisedAmount: big.NewInt(200), Status: entity.AskActive})
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/v1/session/connect", nil).Code)

	rec := a.do(t, http.MethodPost, "/api/v1/asks/1/fund", restapi.FundRequest{AmountBaseUnits: "800"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[restapi.WriteResponse](t, rec)
	assert.Equal(t, "confirmed", resp.Transaction.State)
	assert.Equal(t, "invest", resp.Transaction.Kind)
	require.NotNil(t, resp.Transaction.AskID)
	assert.Equal(t, uint64(1), *resp.Transaction.AskID)
	assert.Empty(t, resp.RefreshError)

	list := decode[restapi.AskListResponse](t, a.do(t, http.MethodGet, "/api/v1/asks", nil))
	require.Len(t, list.Asks, 1)
	assert.Equal(t, "1000", list.Asks[0].RaisedAmount)
	assert.Equal(t, "Active", list.Asks[0].Status)

	rec = a.do(t, http.MethodGet, "/api/v1/investments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	invs := decode[struct {
		Investments []restapi.InvestmentResponse `json:"investments"`
	}](t, rec)
	require.Len(t, invs.Investments, 1)
	assert.Equal(t, "800", invs.Investments[0].Amount)
}

func TestFund_DisplayAmountConvertedToBaseUnits(t *testing.T) {
	a := newAPI(t, nil, 0)
	target, _ := new(big.Int).SetString("5000000000000000000", 10)
	a.ledger.AddAsk(entity.InvestmentAsk{ID: 3, Business: "C", TargetAmount: target, RaisedAmount: big.NewInt(0)})
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/v1/session/connect", nil).Code)

	rec := a.do(t, http.MethodPost, "/api/v1/asks/3/fund", restapi.FundRequest{Amount: restapi.DisplayText("1.5")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	list := decode[restapi.AskListResponse](t, a.do(t, http.MethodGet, "/api/v1/asks", nil))
	require.Len(t, list.Asks, 1)
	assert.Equal(t, "1500000000000000000", list.Asks[0].RaisedAmount)
	assert.Equal(t, "1.5", list.Asks[0].RaisedFormatted)
}

func TestFund_AcceptsNumericAmount(t *testing.T) {
	a := newAPI(t, nil, 0)
	target, _ := new(big.Int).SetString("5000000000000000000", 10)
	a.ledger.AddAsk(entity.InvestmentAsk{ID: 3, Business: "C", TargetAmount: target, RaisedAmount: big.NewInt(0)})
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/v1/session/connect", nil).Code)

	rec := a.do(t, http.MethodPost, "/api/v1/asks/3/fund", json.RawMessage(`{"amount":1.5}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	list := decode[restapi.AskListResponse](t, a.do(t, http.MethodGet, "/api/v1/asks", nil))
	require.Len(t, list.Asks, 1)
	assert.Equal(t, "1500000000000000000", list.Asks[0].RaisedAmount)

	rec = a.do(t, http.MethodPost, "/api/v1/asks/3/fund", restapi.FundRequest{Amount: restapi.DisplayNumber(-2)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFund_InputErrors(t *testing.T) {
	a := newAPI(t, nil, 0)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/v1/session/connect", nil).Code)

	cases := []struct {
		name string
		path string
		body restapi.FundRequest
	}{
		{"negative", "/api/v1/asks/1/fund", restapi.FundRequest{Amount: restapi.DisplayText("-1")}},
		{"not a number", "/api/v1/asks/1/fund", restapi.FundRequest{Amount: restapi.DisplayText("NaN")}},
		{"zero", "/api/v1/asks/1/fund", restapi.FundRequest{Amount: restapi.DisplayText("0")}},
		{"bad base units", "/api/v1/asks/1/fund", restapi.FundRequest{AmountBaseUnits: "1.5"}},
		{"bad id", "/api/v1/asks/abc/fund", restapi.FundRequest{Amount: restapi.DisplayText("1")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := a.do(t, http.MethodPost, tc.path, tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "invalid_input", decode[restapi.ErrorResponse](t, rec).Code)
		})
	}
	assert.Zero(t, a.ledger.Submits())
}

func TestFund_SignerUnavailableIsConflict(t *testing.T) {
	a := newAPI(t, nil, 0)

	rec := a.do(t, http.MethodPost, "/api/v1/asks/1/fund", restapi.FundRequest{Amount: restapi.DisplayText("1")})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "signer_unavailable", decode[restapi.ErrorResponse](t, rec).Code)
	assert.Zero(t, a.ledger.NetworkCalls())
}

func TestFund_RejectedIsUnprocessable(t *testing.T) {
	a := newAPI(t, nil, 0)
	a.ledger.AddAsk(entity.InvestmentAsk{ID: 1, Business: "A", TargetAmount: big.NewInt(100), RaisedAmount: big.NewInt(90)})
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/v1/session/connect", nil).Code)

	rec := a.do(t, http.MethodPost, "/api/v1/asks/1/fund", restapi.FundRequest{AmountBaseUnits: "20"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[restapi.ErrorResponse](t, rec)
	assert.Equal(t, "transaction_rejected", resp.Code)
	assert.Equal(t, "amount exceeds remaining", resp.Reason)
	require.NotNil(t, resp.Transaction)
	assert.Equal(t, "failed", resp.Transaction.State)
}

func TestFund_TimeoutIsAccepted(t *testing.T) {
	a := newAPI(t, nil, 50*time.Millisecond)
	a.ledger.SetManualMining(true)
	a.ledger.AddAsk(entity.InvestmentAsk{ID: 1, Business: "A", TargetAmount: big.NewInt(100), RaisedAmount: big.NewInt(0)})
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/v1/session/connect", nil).Code)

	rec := a.do(t, http.MethodPost, "/api/v1/asks/1/fund", restapi.FundRequest{AmountBaseUnits: "10"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[restapi.ErrorResponse](t, rec)
	assert.Equal(t, "transaction_timeout", resp.Code)
	require.NotNil(t, resp.Transaction)
	assert.Equal(t, "timed_out", resp.Transaction.State)
	assert.Equal(t, int64(1), a.ledger.Submits())
}

func TestCreateAsk(t *testing.T) {
	a := newAPI(t, nil, 0)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/v1/session/connect", nil).Code)

	rec := a.do(t, http.MethodPost, "/api/v1/asks", restapi.CreateAskRequest{Business: "Acme", TargetAmountBaseUnits: "0"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "targetAmount", decode[restapi.ErrorResponse](t, rec).Field)
	assert.Zero(t, a.ledger.NetworkCalls())

	rec = a.do(t, http.MethodPost, "/api/v1/asks", restapi.CreateAskRequest{Business: "Acme", TargetAmount: restapi.DisplayText("2"), Description: "bakery"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "create_ask", decode[restapi.WriteResponse](t, rec).Transaction.Kind)
	assert.Equal(t, "bakery", a.ledger.Description(1))

	list := decode[restapi.AskListResponse](t, a.do(t, http.MethodGet, "/api/v1/asks", nil))
	require.Len(t, list.Asks, 1)
	assert.Equal(t, "2", list.Asks[0].TargetFormatted)
}

func TestTokens_MintAndTransfer(t *testing.T) {
	a := newAPI(t, nil, 0)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/v1/session/connect", nil).Code)
	token := "0x0000000000000000000000000000000000001111"
	recipient := "0x0000000000000000000000000000000000002222"

	rec := a.do(t, http.MethodPost, "/api/v1/tokens/mint", restapi.MintRequest{Token: "0x12", Amount: 5})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "token", decode[restapi.ErrorResponse](t, rec).Field)

	rec = a.do(t, http.MethodPost, "/api/v1/tokens/mint", restapi.MintRequest{Token: token, Amount: 100})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/v1/tokens/transfer", restapi.TransferRequest{Token: token, Recipient: recipient, Amount: 30})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "transfer", decode[restapi.WriteResponse](t, rec).Transaction.Kind)
	assert.Equal(t, int64(70), a.ledger.TokenBalance(common.HexToAddress(token), a.signer.Address()))
	assert.Equal(t, int64(30), a.ledger.TokenBalance(common.HexToAddress(token), common.HexToAddress(recipient)))
}

func TestPendingAndMetrics(t *testing.T) {
	a := newAPI(t, nil, 0)

	rec := a.do(t, http.MethodGet, "/api/v1/transactions/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"transactions":[]}`, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/network", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(296), decode[entity.NetworkDefinition](t, rec).ChainID)
}
