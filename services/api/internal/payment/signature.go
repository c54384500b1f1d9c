// Package payment holds the payment-gateway contract consumed by issuance:
// order creation and verification of the checkout callback signature.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/cimillas/panache/services/api/internal/domain"
)

// Proof is the verification payload returned by the gateway checkout.
type Proof struct {
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// Verifier checks HMAC-SHA256 signatures over "orderID|paymentID" with the
// secret shared with the gateway.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify returns domain.ErrInvalidSignature unless p was signed with the
// shared secret.
func (v *Verifier) Verify(p Proof) error {
	if len(v.secret) == 0 || p.OrderID == "" || p.PaymentID == "" || p.Signature == "" {
		return domain.ErrInvalidSignature
	}
	got, err := hex.DecodeString(strings.TrimSpace(p.Signature))
	if err != nil {
		return domain.ErrInvalidSignature
	}
	if !hmac.Equal(got, v.mac(p.OrderID, p.PaymentID)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// Sign produces the signature the gateway would attach to orderID and
// paymentID.
func (v *Verifier) Sign(orderID, paymentID string) string {
	return hex.EncodeToString(v.mac(orderID, paymentID))
}

func (v *Verifier) mac(orderID, paymentID string) []byte {
	h := hmac.New(sha256.New, v.secret)
	h.Write([]byte(orderID + "|" + paymentID))
	return h.Sum(nil)
}
