package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/ngvinh/circulib/internal/config"
	"github.com/ngvinh/circulib/internal/services"
)

// GatewayCallbackService is the slice of the loan lifecycle the payment
// return endpoint needs.
type GatewayCallbackService interface {
	HandleGatewayCallback(ctx context.Context, raw url.Values) (services.CallbackOutcome, error)
}

// PaymentHandler receives the gateway's return redirect. Whatever happens
// internally, the payer is always sent to the result page; a broken page
// after a successful charge is the one outcome this handler must not
// produce.
type PaymentHandler struct {
	loanService GatewayCallbackService
	resultURL   string
	logger      *slog.Logger
}

func NewPaymentHandler(loanService GatewayCallbackService, cfg config.VNPayConfig, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		loanService: loanService,
		resultURL:   cfg.ResultURL,
		logger:      logger,
	}
}

func (h *PaymentHandler) GatewayReturn(c *gin.Context) {
	outcome, err := h.loanService.HandleGatewayCallback(c.Request.Context(), c.Request.URL.Query())

	status := "failed"
	switch {
	case err != nil:
		h.logger.Error("gateway callback processing failed",
			"txn_ref", outcome.TransactionRef, "error", err)
	case outcome.IntegrityAlert:
		// The charge went through; the copy release is an operator problem.
		status = "paid"
	case outcome.Paid:
		status = "paid"
	}

	params := url.Values{}
	params.Set("status", status)
	if outcome.LoanID != "" {
		params.Set("loan_id", outcome.LoanID)
	}
	if outcome.TransactionRef != "" {
		params.Set("txn_ref", outcome.TransactionRef)
	}

	c.Redirect(http.StatusFound, h.resultURL+"?"+params.Encode())
}
