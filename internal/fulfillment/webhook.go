package fulfillment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// WebhookVerifier checks the HMAC-SHA256 signature the gateway attaches to
// every webhook body. The signature is hex encoded, optionally prefixed with
// "sha256=". An empty secret disables verification.
type WebhookVerifier struct {
	secret []byte
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret)}
}

func (v *WebhookVerifier) Enabled() bool {
	return len(v.secret) > 0
}

func (v *WebhookVerifier) Verify(body []byte, signature string) error {
	if !v.Enabled() {
		return nil
	}

	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return ErrMissingSignature
	}

	given, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(given, v.sign(body)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex signature for body.
func (v *WebhookVerifier) Sign(body []byte) string {
	return hex.EncodeToString(v.sign(body))
}

func (v *WebhookVerifier) sign(body []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return mac.Sum(nil)
}
