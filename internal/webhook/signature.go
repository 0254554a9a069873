package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 digest of the raw request body.
const SignatureHeader = "X-Webhook-Signature"

// VerifySignature checks a webhook signature against the exact raw body
// bytes. With no secret configured, every request is accepted. With a secret,
// the header must be present and equal (in constant time) the lowercase hex
// HMAC-SHA256 digest of the body keyed by the secret. Uppercase digests are
// rejected.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" {
		return true
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(header), []byte(want)) == 1
}
