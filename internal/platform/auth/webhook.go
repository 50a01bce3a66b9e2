package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderWebhookTimestamp = "X-Gamelog-Webhook-Ts"
	HeaderWebhookSignature = "X-Gamelog-Webhook-Sig"
)

// ComputeWebhookSignature signs ts, method, and body with the shared secret.
func ComputeWebhookSignature(secret string, ts string, method string, body []byte) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("webhook secret is required")
	}
	if strings.TrimSpace(ts) == "" {
		return "", errors.New("timestamp is required")
	}
	msg := strings.Join([]string{ts, strings.ToUpper(strings.TrimSpace(method)), string(body)}, "\n")
	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := mac.Write([]byte(msg)); err != nil {
		return "", fmt.Errorf("hmac: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func VerifyWebhookSignature(secret string, ts string, method string, body []byte, signature string) error {
	expected, err := ComputeWebhookSignature(secret, ts, method, body)
	if err != nil {
		return err
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return errors.New("signature is required")
	}
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errors.New("invalid signature")
	}
	return nil
}

// VerifyWebhookTimestamp rejects timestamps outside the allowed skew window.
func VerifyWebhookTimestamp(ts string, now time.Time, maxSkew time.Duration) error {
	tsInt, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	if maxSkew <= 0 {
		maxSkew = 5 * time.Minute
	}
	issued := time.Unix(tsInt, 0).UTC()
	diff := now.UTC().Sub(issued)
	if diff < 0 {
		diff = -diff
	}
	if diff > maxSkew {
		return errors.New("timestamp outside allowed skew")
	}
	return nil
}
