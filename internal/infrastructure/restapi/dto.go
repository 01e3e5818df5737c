package restapi

import (
	"math/big"
	"time"

	"fundchain/internal/app/service"
	"fundchain/internal/domain/entity"
	"fundchain/internal/pkg/utils"
)

const balanceDisplayPlaces = 4

// SessionResponse is the wallet session as seen by the UI.
type SessionResponse struct {
	Status     string          `json:"status"`
	Generation uint64          `json:"generation"`
	AccountID  string          `json:"accountId,omitempty"`
	Address    string          `json:"address,omitempty"`
	Balance    *entity.Balance `json:"balance,omitempty"`
	LastError  string          `json:"lastError,omitempty"`
}

// AskResponse is one investment ask. Raw amounts are base-unit integers as strings.
type AskResponse struct {
	ID              uint64 `json:"id"`
	Business        string `json:"business"`
	TargetAmount    string `json:"targetAmount"`
	RaisedAmount    string `json:"raisedAmount"`
	TargetFormatted string `json:"targetFormatted"`
	RaisedFormatted string `json:"raisedFormatted"`
	Status          string `json:"status"`
	StatusCode      uint8  `json:"statusCode"`
	StatusKnown     bool   `json:"statusKnown"`
}

// AskListResponse wraps the cached snapshot.
type AskListResponse struct {
	Asks        []AskResponse `json:"asks"`
	RefreshedAt *time.Time    `json:"refreshedAt,omitempty"`
}

// TransactionResponse is a submitted write.
type TransactionResponse struct {
	ID          string    `json:"id"`
	TxHash      string    `json:"txHash"`
	Kind        string    `json:"kind"`
	State       string    `json:"state"`
	AskID       *uint64   `json:"askId,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
	Error       string    `json:"error,omitempty"`
}

// ReceiptResponse is the ledger acknowledgement of a confirmed write.
type ReceiptResponse struct {
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
}

// WriteResponse is returned by every write endpoint.
type WriteResponse struct {
	Transaction  TransactionResponse `json:"transaction"`
	Receipt      *ReceiptResponse    `json:"receipt,omitempty"`
	RefreshError string              `json:"refreshError,omitempty"`
}

// InvestmentResponse is one Invested event of the connected account.
type InvestmentResponse struct {
	AskID           uint64 `json:"askId"`
	Amount          string `json:"amount"`
	AmountFormatted string `json:"amountFormatted"`
	BlockNumber     uint64 `json:"blockNumber"`
	TxHash          string `json:"txHash"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code        string               `json:"code"`
	Message     string               `json:"message"`
	Field       string               `json:"field,omitempty"`
	Reason      string               `json:"reason,omitempty"`
	RevertCode  string               `json:"revertCode,omitempty"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
	Session     *SessionResponse     `json:"session,omitempty"`
}

// DisplayAmount is an HBAR amount sent either as a JSON string ("1.5") or a JSON number (1.5).
type DisplayAmount struct {
	text   string
	number *float64
}

// DisplayText builds a DisplayAmount from a decimal string.
func DisplayText(s string) DisplayAmount { return DisplayAmount{text: s} }

// DisplayNumber builds a DisplayAmount from a float.
func DisplayNumber(f float64) DisplayAmount { return DisplayAmount{number: &f} }

// UnmarshalJSON accepts a string, a number or null.
func (a *DisplayAmount) UnmarshalJSON(b []byte) error {
	*a = DisplayAmount{}
	switch {
	case string(b) == "null":
		return nil
	case len(b) > 0 && b[0] == '"':
		return json.Unmarshal(b, &a.text)
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	a.number = &f
	return nil
}

// MarshalJSON writes a number if one was given, else the string.
func (a DisplayAmount) MarshalJSON() ([]byte, error) {
	if a.number != nil {
		return json.Marshal(*a.number)
	}
	return json.Marshal(a.text)
}

// FundRequest carries either a display amount or a base-unit integer.
type FundRequest struct {
	Amount          DisplayAmount `json:"amount"`
	AmountBaseUnits string        `json:"amountBaseUnits"`
}

// CreateAskRequest is the body of POST /asks.
type CreateAskRequest struct {
	Business              string        `json:"business"`
	TargetAmount          DisplayAmount `json:"targetAmount"`
	TargetAmountBaseUnits string        `json:"targetAmountBaseUnits"`
	Description           string        `json:"description"`
}

// MintRequest is the body of POST /tokens/mint.
type MintRequest struct {
	Token  string `json:"token"`
	Amount int64  `json:"amount"`
}

// TransferRequest is the body of POST /tokens/transfer.
type TransferRequest struct {
	Token     string `json:"token"`
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
}

func toSessionResponse(ws entity.WalletSession, net entity.NetworkDefinition) SessionResponse {
	out := SessionResponse{
		Status:     ws.Status.String(),
		Generation: ws.Generation,
		AccountID:  ws.AccountID,
	}
	if ws.ChainAddress != nil {
		out.Address = ws.ChainAddress.Hex()
	}
	if ws.Balance != nil && ws.ChainAddress != nil {
		out.Balance = &entity.Balance{
			WalletAddress:    ws.ChainAddress.Hex(),
			NetworkName:      net.Name,
			TokenSymbol:      net.NativeSymbol,
			Decimals:         net.Decimals,
			Amount:           ws.Balance,
			BaseUnits:        ws.Balance.String(),
			FormattedBalance: utils.FormatBigIntFixed(ws.Balance, net.Decimals, balanceDisplayPlaces) + " " + net.NativeSymbol,
		}
	}
	if ws.LastError != nil {
		out.LastError = ws.LastError.Error()
	}
	return out
}

func toAskResponse(a entity.InvestmentAsk, decimals uint8) AskResponse {
	return AskResponse{
		ID:              a.ID,
		Business:        a.Business,
		TargetAmount:    bigString(a.TargetAmount),
		RaisedAmount:    bigString(a.RaisedAmount),
		TargetFormatted: formatAmount(a.TargetAmount, decimals),
		RaisedFormatted: formatAmount(a.RaisedAmount, decimals),
		Status:          a.Status.String(),
		StatusCode:      uint8(a.Status),
		StatusKnown:     a.Status.Known(),
	}
}

func toAskListResponse(asks []entity.InvestmentAsk, refreshedAt time.Time, decimals uint8) AskListResponse {
	out := AskListResponse{Asks: make([]AskResponse, 0, len(asks))}
	for _, a := range asks {
		out.Asks = append(out.Asks, toAskResponse(a, decimals))
	}
	if !refreshedAt.IsZero() {
		out.RefreshedAt = &refreshedAt
	}
	return out
}

func toTransactionResponse(tx entity.PendingTransaction) TransactionResponse {
	out := TransactionResponse{
		ID:          tx.ID,
		TxHash:      tx.TxHash.Hex(),
		Kind:        tx.Kind.String(),
		State:       tx.State.String(),
		AskID:       tx.AskID,
		SubmittedAt: tx.SubmittedAt,
	}
	if tx.Err != nil {
		out.Error = tx.Err.Error()
	}
	return out
}

func toWriteResponse(res service.WriteResult) WriteResponse {
	out := WriteResponse{Transaction: toTransactionResponse(res.Tx)}
	if res.Receipt != nil {
		out.Receipt = &ReceiptResponse{BlockNumber: res.Receipt.BlockNumber, GasUsed: res.Receipt.GasUsed}
	}
	if res.RefreshErr != nil {
		out.RefreshError = res.RefreshErr.Error()
	}
	return out
}

func toInvestmentResponse(inv entity.Investment, decimals uint8) InvestmentResponse {
	return InvestmentResponse{
		AskID:           inv.AskID,
		Amount:          bigString(inv.Amount),
		AmountFormatted: formatAmount(inv.Amount, decimals),
		BlockNumber:     inv.BlockNumber,
		TxHash:          inv.TxHash.Hex(),
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAmount(v *big.Int, decimals uint8) string {
	s, err := utils.FormatBigInt(v, decimals)
	if err != nil {
		return bigString(v)
	}
	return s
}
