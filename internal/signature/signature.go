package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Header is the GitHub webhook signature header.
const Header = "X-Hub-Signature-256"

const prefix = "sha256="

// Verify reports whether signatureHeader matches the HMAC-SHA256 of rawBody
// under secret, in GitHub's "sha256=<hex>" form. Comparison is constant
// time. Malformed input (wrong prefix, non-hex digest) verifies false, and
// an empty configured secret fails closed rather than accepting unsigned
// deliveries.
func Verify(rawBody []byte, signatureHeader, secret string) bool {
	if secret == "" {
		return false
	}

	value, ok := strings.CutPrefix(signatureHeader, prefix)
	if !ok || value == "" {
		return false
	}

	supplied, err := hex.DecodeString(value)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	return subtle.ConstantTimeCompare(supplied, expected) == 1
}

// Sign computes the "sha256=<hex>" signature for rawBody under secret.
// Used by tests and by outbound webhook replays.
func Sign(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return prefix + hex.EncodeToString(mac.Sum(nil))
}
