package handler

import (
	"strconv"

	"balance-ledger/internal/adapter/http/dto"
	"balance-ledger/internal/adapter/http/middleware"
	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"
	"balance-ledger/pkg/apperror"
	"balance-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

// TransactionHandler serves deposits, withdrawals and history for the caller.
type TransactionHandler struct {
	ledgerSvc    ports.LedgerService
	historySvc   ports.HistoryService
	defaultLimit int
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(ledgerSvc ports.LedgerService, historySvc ports.HistoryService, defaultLimit int) *TransactionHandler {
	return &TransactionHandler{
		ledgerSvc:    ledgerSvc,
		historySvc:   historySvc,
		defaultLimit: defaultLimit,
	}
}

// Apply handles POST /api/v1/transactions.
func (h *TransactionHandler) Apply(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	key := c.GetHeader(HeaderIdempotencyKey)
	if key != "" && !dto.ValidIdempotencyKey(key) {
		response.Error(c, apperror.ErrInvalidRequest("invalid Idempotency-Key header"))
		return
	}

	var req dto.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, middleware.BindError(err))
		return
	}

	txType, err := domain.ParseTransactionType(req.Kind())
	if err != nil {
		response.Error(c, apperror.ErrInvalidRequest(`action must be "deposit" or "withdraw"`))
		return
	}

	result, err := h.ledgerSvc.Apply(c.Request.Context(), ports.ApplyRequest{
		UserID:         userID,
		Type:           txType,
		Amount:         *req.Amount,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Replayed {
		c.Header(HeaderReplayed, "true")
	}
	middleware.SetAudit(c, domain.AuditActionFor(result.Transaction.Type), strconv.FormatInt(result.Transaction.ID, 10))
	response.OK(c, dto.NewApplyResponse(result))
}

// History handles GET /api/v1/transactions.
func (h *TransactionHandler) History(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, apperror.ErrInvalidRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}

	history, err := h.historySvc.History(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewHistoryResponse(history))
}
