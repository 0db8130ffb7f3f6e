package services

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"log/slog"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ngvinh/circulib/internal/config"
	"github.com/ngvinh/circulib/internal/models"
)

// VNPay response code for a successful payment.
const vnpSuccessCode = "00"

// RedirectRequest is what the loan lifecycle hands the gateway adapter when
// a gateway payment is prepared.
type RedirectRequest struct {
	Amount    decimal.Decimal
	TxnRef    string
	OrderInfo string
	ClientIP  string
}

// CallbackResult is a signature-verified gateway callback.
type CallbackResult struct {
	TxnRef       string
	ResponseCode string
	Amount       string
	Success      bool
}

// VNPayService builds signed redirect URLs for the VNPAY hosted payment
// page and verifies the signature on inbound callbacks. It never calls the
// processor itself.
type VNPayService struct {
	cfg    config.VNPayConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewVNPayService(cfg config.VNPayConfig, logger *slog.Logger) *VNPayService {
	return &VNPayService{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// BuildRedirect assembles the VNPAY parameter set, signs it and returns the
// full redirect URL. The signature is HMAC-SHA512 over the
// lexicographically sorted, URL-encoded parameters.
func (s *VNPayService) BuildRedirect(req RedirectRequest) (string, error) {
	if s.cfg.TmnCode == "" || s.cfg.HashSecret == "" || s.cfg.PayURL == "" || s.cfg.ReturnURL == "" {
		return "", models.ErrGatewayMisconfigured
	}

	params := url.Values{}
	params.Set("vnp_Version", "2.1.0")
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", s.cfg.TmnCode)
	// VNPAY expects the amount multiplied by 100 with no decimal point.
	params.Set("vnp_Amount", req.Amount.Shift(2).StringFixed(0))
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", req.TxnRef)
	params.Set("vnp_OrderInfo", req.OrderInfo)
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Locale", "vn")
	params.Set("vnp_ReturnUrl", s.cfg.ReturnURL)
	params.Set("vnp_IpAddr", req.ClientIP)
	params.Set("vnp_CreateDate", s.now().Format("20060102150405"))

	// url.Values.Encode sorts keys, which is exactly the canonical form
	// the signature is computed over.
	encoded := params.Encode()
	signature := s.sign(encoded)

	return s.cfg.PayURL + "?" + encoded + "&vnp_SecureHash=" + signature, nil
}

// VerifyCallback strips the signature parameter, recomputes the HMAC over
// the remaining sorted parameters and compares. It fails closed: any
// mismatch rejects the callback.
func (s *VNPayService) VerifyCallback(raw url.Values) (CallbackResult, error) {
	if s.cfg.HashSecret == "" {
		return CallbackResult{}, models.ErrGatewayMisconfigured
	}

	received := raw.Get("vnp_SecureHash")
	if received == "" {
		return CallbackResult{}, models.ErrInvalidSignature
	}

	params := url.Values{}
	for key, values := range raw {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		for _, v := range values {
			params.Add(key, v)
		}
	}

	expected := s.sign(params.Encode())
	if !hmac.Equal([]byte(expected), []byte(received)) {
		s.logger.Warn("payment callback signature mismatch, possible tampering",
			"txn_ref", raw.Get("vnp_TxnRef"))
		return CallbackResult{}, models.ErrInvalidSignature
	}

	code := params.Get("vnp_ResponseCode")
	return CallbackResult{
		TxnRef:       params.Get("vnp_TxnRef"),
		ResponseCode: code,
		Amount:       params.Get("vnp_Amount"),
		Success:      code == vnpSuccessCode,
	}, nil
}

func (s *VNPayService) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(s.cfg.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
