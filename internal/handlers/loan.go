package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ngvinh/circulib/internal/models"
	"github.com/ngvinh/circulib/internal/services"
)

// LoanHandler handles the borrow lifecycle endpoints.
type LoanHandler struct {
	loanService *services.LoanService
}

func NewLoanHandler(loanService *services.LoanService) *LoanHandler {
	return &LoanHandler{
		loanService: loanService,
	}
}

func (h *LoanHandler) OpenLoan(c *gin.Context) {
	var req models.OpenLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request data", err.Error())
		return
	}

	// Members may only borrow against their own account.
	if c.GetString("user_role") != models.RoleAdmin {
		req.Email = c.GetString("user_email")
	}

	loan, err := h.loanService.Open(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, loan, "Loan opened")
}

func (h *LoanHandler) RenewLoan(c *gin.Context) {
	loanID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		respondError(c, models.ErrUserNotFound)
		return
	}

	loan, err := h.loanService.Renew(c.Request.Context(), loanID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, loan, "Loan renewed")
}

func (h *LoanHandler) PreparePayment(c *gin.Context) {
	loanID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req models.PreparePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request data", err.Error())
		return
	}

	result, err := h.loanService.PreparePayment(c.Request.Context(), loanID, req.Method, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, result, "Payment prepared")
}

// ConfirmCash settles a cash payment at the desk. Operator only.
func (h *LoanHandler) ConfirmCash(c *gin.Context) {
	loanID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	loan, err := h.loanService.ConfirmCash(c.Request.Context(), loanID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, loan, "Payment confirmed, loan closed")
}

func (h *LoanHandler) ListMyLoans(c *gin.Context) {
	userID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		respondError(c, models.ErrUserNotFound)
		return
	}

	page, limit := pageParams(c)
	openOnly := c.Query("open") == "true"

	result, err := h.loanService.ListUserLoans(c.Request.Context(), userID, openOnly, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, result, "")
}

func (h *LoanHandler) ListAllLoans(c *gin.Context) {
	page, limit := pageParams(c)

	result, err := h.loanService.ListAllLoans(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, result, "")
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
