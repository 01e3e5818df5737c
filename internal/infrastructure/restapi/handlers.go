package restapi

import (
	"context"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fundchain/internal/app/port"
	"fundchain/internal/app/service"
	"fundchain/internal/domain/entity"
	"fundchain/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// SessionController is the part of the session store the API drives.
type SessionController interface {
	Snapshot() entity.WalletSession
	Connect(ctx context.Context) (entity.WalletSession, error)
	Disconnect()
}

// AskService is the synchronizer surface the API exposes.
type AskService interface {
	Asks() []entity.InvestmentAsk
	RefreshedAt() time.Time
	Refresh(ctx context.Context) ([]entity.InvestmentAsk, error)
	RefreshBalance(ctx context.Context) error
	MyInvestments(ctx context.Context) ([]entity.Investment, error)
	Pending() []entity.PendingTransaction
	Fund(ctx context.Context, askID uint64, amount *big.Int) (service.WriteResult, error)
	CreateAsk(ctx context.Context, params entity.CreateAskParams) (service.WriteResult, error)
	MintToken(ctx context.Context, params entity.MintParams) (service.WriteResult, error)
	TransferToken(ctx context.Context, params entity.TransferParams) (service.WriteResult, error)
}

// Handler serves the UI-facing JSON API.
type Handler struct {
	session SessionController
	asks    AskService
	network entity.NetworkDefinition
	logger  port.Logger
}

// NewHandler creates a new Handler. Display conversions use the network's decimals.
func NewHandler(session SessionController, asks AskService, network entity.NetworkDefinition, logger port.Logger) *Handler {
	return &Handler{
		session: session,
		asks:    asks,
		network: network,
		logger:  logger,
	}
}

// GetNetwork returns the active network definition.
func (h *Handler) GetNetwork(c *gin.Context) {
	c.JSON(http.StatusOK, h.network)
}

// GetSession returns the current wallet session.
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, toSessionResponse(h.session.Snapshot(), h.network))
}

// Connect pairs with the wallet, joining an attempt already in flight.
func (h *Handler) Connect(c *gin.Context) {
	ws, err := h.session.Connect(c.Request.Context())
	if err != nil {
		status, resp := errorStatus(err)
		sess := toSessionResponse(ws, h.network)
		resp.Session = &sess
		h.logger.Warn("Wallet connect failed", "status", status, "error", err)
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(ws, h.network))
}

// Disconnect always succeeds.
func (h *Handler) Disconnect(c *gin.Context) {
	h.session.Disconnect()
	c.JSON(http.StatusOK, toSessionResponse(h.session.Snapshot(), h.network))
}

// RefreshBalance re-reads the connected account's balance.
func (h *Handler) RefreshBalance(c *gin.Context) {
	if err := h.asks.RefreshBalance(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(h.session.Snapshot(), h.network))
}

// ListAsks returns the cached snapshot, loading it on first use.
func (h *Handler) ListAsks(c *gin.Context) {
	if h.asks.RefreshedAt().IsZero() {
		if _, err := h.asks.Refresh(c.Request.Context()); err != nil {
			h.respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, toAskListResponse(h.asks.Asks(), h.asks.RefreshedAt(), h.network.Decimals))
}

// RefreshAsks replaces the snapshot from the ledger.
func (h *Handler) RefreshAsks(c *gin.Context) {
	asks, err := h.asks.Refresh(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAskListResponse(asks, h.asks.RefreshedAt(), h.network.Decimals))
}

// CreateAsk submits createInvestmentAsk and waits for the outcome.
func (h *Handler) CreateAsk(c *gin.Context) {
	var req CreateAskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, entity.NewInvalidInput("body", err.Error()))
		return
	}
	target, err := h.parseAmount("targetAmount", req.TargetAmount, req.TargetAmountBaseUnits)
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.asks.CreateAsk(c.Request.Context(), entity.CreateAskParams{
		Business:     req.Business,
		TargetAmount: target,
		Description:  req.Description,
	})
	h.respondWrite(c, res, err)
}

// FundAsk invests in the ask named by the :id path parameter.
func (h *Handler) FundAsk(c *gin.Context) {
	askID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		h.respondError(c, entity.NewInvalidInput("id", "must be a non-negative integer"))
		return
	}
	var req FundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, entity.NewInvalidInput("body", err.Error()))
		return
	}
	amount, err := h.parseAmount("amount", req.Amount, req.AmountBaseUnits)
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.asks.Fund(c.Request.Context(), askID, amount)
	h.respondWrite(c, res, err)
}

// ListInvestments returns the connected account's investments.
func (h *Handler) ListInvestments(c *gin.Context) {
	invs, err := h.asks.MyInvestments(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]InvestmentResponse, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toInvestmentResponse(inv, h.network.Decimals))
	}
	c.JSON(http.StatusOK, gin.H{"investments": out})
}

// ListPending returns writes still awaiting an outcome.
func (h *Handler) ListPending(c *gin.Context) {
	pending := h.asks.Pending()
	out := make([]TransactionResponse, 0, len(pending))
	for _, tx := range pending {
		out = append(out, toTransactionResponse(tx))
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

// MintToken mints through the token service.
func (h *Handler) MintToken(c *gin.Context) {
	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, entity.NewInvalidInput("body", err.Error()))
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.asks.MintToken(c.Request.Context(), entity.MintParams{Token: token, Amount: req.Amount})
	h.respondWrite(c, res, err)
}

// TransferToken transfers from the connected account through the token service.
func (h *Handler) TransferToken(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, entity.NewInvalidInput("body", err.Error()))
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		h.respondError(c, err)
		return
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.asks.TransferToken(c.Request.Context(), entity.TransferParams{
		Token:     token,
		Recipient: recipient,
		Amount:    req.Amount,
	})
	h.respondWrite(c, res, err)
}

// parseAmount converts display units to base units. A base-unit value wins when both are given.
func (h *Handler) parseAmount(field string, display DisplayAmount, baseUnits string) (*big.Int, error) {
	if baseUnits = strings.TrimSpace(baseUnits); baseUnits != "" {
		v, ok := new(big.Int).SetString(baseUnits, 10)
		if !ok {
			return nil, entity.NewInvalidInput(field, "base units must be an integer")
		}
		if v.Sign() < 0 {
			return nil, entity.NewInvalidInput(field, "must not be negative")
		}
		return v, nil
	}
	var (
		v   *big.Int
		err error
	)
	if display.number != nil {
		v, err = utils.FloatToUnits(*display.number, h.network.Decimals)
	} else {
		v, err = utils.ParseUnits(display.text, h.network.Decimals)
	}
	if err != nil {
		if e, ok := entity.IsInvalidInput(err); ok {
			return nil, entity.NewInvalidInput(field, e.Reason)
		}
		return nil, err
	}
	return v, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, entity.NewInvalidInput(field, "not a valid address")
	}
	return common.HexToAddress(s), nil
}
