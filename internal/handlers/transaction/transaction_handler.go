// internal/handlers/transaction/transaction_handler.go
package transaction

import (
	"net/http"

	"fanpay-service/internal/domain/transaction"
	"fanpay-service/internal/middleware"
	xerrors "fanpay-service/internal/pkg/errors"
	"fanpay-service/internal/pkg/response"
	service "fanpay-service/internal/service/payment"

	"github.com/gin-gonic/gin"
)

type TransactionHandler struct {
	paymentService *service.Service
}

func NewTransactionHandler(paymentService *service.Service) *TransactionHandler {
	return &TransactionHandler{paymentService: paymentService}
}

// ListMine retrieves the caller's own payment history
func (h *TransactionHandler) ListMine(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var filters transaction.SearchFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.paymentService.SearchUserTransactions(c.Request.Context(), userID, &filters)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list transactions", err)
		return
	}

	response.Success(c, http.StatusOK, "transactions retrieved", result)
}

// Get retrieves one transaction. Non-admin callers only see their own.
func (h *TransactionHandler) Get(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	txn, err := h.paymentService.FindTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "transaction not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to get transaction", err)
		return
	}

	if txn.SourceID != userID && !middleware.IsAdmin(c) {
		response.Forbidden(c, "forbidden")
		return
	}

	response.Success(c, http.StatusOK, "transaction retrieved", txn)
}

// AdminSearch is the unscoped listing for operators
func (h *TransactionHandler) AdminSearch(c *gin.Context) {
	var filters transaction.SearchFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.paymentService.SearchTransactions(c.Request.Context(), &filters)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to search transactions", err)
		return
	}

	response.Success(c, http.StatusOK, "transactions retrieved", result)
}
