// ABOUTME: Webhook signature verification for WhatsApp Cloud API callbacks
// ABOUTME: Validates the X-Hub-Signature-256 HMAC-SHA256 header over the raw body

package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader is the header carrying the payload HMAC
const SignatureHeader = "X-Hub-Signature-256"

// VerifySignature checks the sha256= HMAC header against the raw request body.
// An empty appSecret disables verification (local development).
func VerifySignature(appSecret string, body []byte, header string) bool {
	if appSecret == "" {
		return true
	}

	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sig))
}
