package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/config"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifyWebhookSignature checks a hex-encoded HMAC-SHA256 of the raw request
// body against the configured secret, using a constant-time comparison.
//
// An empty WEBHOOK_SECRET degrades to permissive test mode. That mode is
// insecure by construction, so every request in it is logged loudly.
func VerifyWebhookSignature(body []byte, signature string) error {
	secret := strings.TrimSpace(os.Getenv("WEBHOOK_SECRET"))
	if secret == "" {
		config.LogWarn(config.GetLogger(), "utils", "VerifyWebhookSignature",
			"WEBHOOK_SECRET not set; accepting unsigned webhook (test mode)", nil)
		return nil
	}

	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrInvalidSignature
	}
	// Accept the common "sha256=" prefix.
	signature = strings.TrimPrefix(signature, "sha256=")

	given, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(given, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// SignWebhookBody produces the hex HMAC-SHA256 a caller should send. Used by
// tests and the local webhook replay tool.
func SignWebhookBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
