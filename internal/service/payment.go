package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// PaymentVerifier checks a payment gateway's signature over an order and
// payment reference.
type PaymentVerifier interface {
	Verify(orderRef, paymentRef, signature string) bool
}

// PaymentRefs are the gateway references a client submits for an online
// payment.
type PaymentRefs struct {
	GatewayOrderRef string `json:"gateway_order_ref"`
	PaymentRef      string `json:"payment_ref"`
	Signature       string `json:"signature"`
}

// HMACVerifier verifies hex-encoded HMAC-SHA256 signatures of
// "orderRef|paymentRef".
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier creates a verifier. An empty secret rejects everything.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Sign returns the expected signature.
func (v *HMACVerifier) Sign(orderRef, paymentRef string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *HMACVerifier) Verify(orderRef, paymentRef, signature string) bool {
	if len(v.secret) == 0 || orderRef == "" || paymentRef == "" || signature == "" {
		return false
	}
	want := v.Sign(orderRef, paymentRef)
	return hmac.Equal([]byte(want), []byte(signature))
}
