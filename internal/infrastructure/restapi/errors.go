package restapi

import (
	"context"
	"errors"
	"net/http"

	"fundchain/internal/app/service"
	"fundchain/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// statusClientClosedRequest is the non-standard status for a caller that went away.
const statusClientClosedRequest = 499

// errorStatus maps the error taxonomy onto HTTP.
func errorStatus(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Message: err.Error()}

	if e, ok := entity.IsInvalidInput(err); ok {
		resp.Code, resp.Field, resp.Reason = "invalid_input", e.Field, e.Reason
		return http.StatusBadRequest, resp
	}
	if errors.Is(err, entity.ErrSignerUnavailable) {
		resp.Code = "signer_unavailable"
		return http.StatusConflict, resp
	}
	if _, ok := entity.IsPairingFailure(err); ok {
		resp.Code = "pairing_failure"
		return http.StatusBadGateway, resp
	}
	if e, ok := entity.IsReadFailure(err); ok {
		resp.Code, resp.Reason = "read_failure", e.Op
		return http.StatusBadGateway, resp
	}
	if e, ok := entity.IsRejected(err); ok {
		resp.Code, resp.Reason, resp.RevertCode = "transaction_rejected", e.Reason, e.Code
		return http.StatusUnprocessableEntity, resp
	}
	if _, ok := entity.IsTimeout(err); ok {
		resp.Code = "transaction_timeout"
		return http.StatusAccepted, resp
	}
	if errors.Is(err, entity.ErrTransactionAbandoned) {
		resp.Code = "transaction_abandoned"
		return http.StatusAccepted, resp
	}
	if errors.Is(err, context.Canceled) {
		resp.Code = "canceled"
		return statusClientClosedRequest, resp
	}
	resp.Code = "internal"
	return http.StatusInternalServerError, resp
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, resp := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
	} else {
		h.logger.Debug("Request rejected", "path", c.FullPath(), "status", status, "code", resp.Code)
	}
	c.JSON(status, resp)
}

// respondWrite reports a write whose transaction may already be on the ledger.
func (h *Handler) respondWrite(c *gin.Context, res service.WriteResult, err error) {
	if err == nil {
		c.JSON(http.StatusOK, toWriteResponse(res))
		return
	}
	status, resp := errorStatus(err)
	if res.Tx.ID != "" {
		tx := toTransactionResponse(res.Tx)
		resp.Transaction = &tx
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Write failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, resp)
}
