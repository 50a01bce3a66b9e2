package auth

import (
	"strconv"
	"testing"
	"time"
)

func TestWebhookSignatureRoundTrip(t *testing.T) {
	body := []byte(`{"event":"push","branch":"main"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	sig, err := ComputeWebhookSignature("secret", ts, "POST", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := VerifyWebhookSignature("secret", ts, "POST", body, sig); err != nil {
		t.Fatalf("expected signature to verify: %v", err)
	}
}

func TestWebhookSignatureRejectsTamperedBody(t *testing.T) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := ComputeWebhookSignature("secret", ts, "POST", []byte(`{"event":"push"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := VerifyWebhookSignature("secret", ts, "POST", []byte(`{"event":"pull_request"}`), sig); err == nil {
		t.Fatalf("expected verification failure for tampered body")
	}
	if err := VerifyWebhookSignature("other", ts, "POST", []byte(`{"event":"push"}`), sig); err == nil {
		t.Fatalf("expected verification failure for wrong secret")
	}
}

func TestWebhookTimestampSkew(t *testing.T) {
	now := time.Now().UTC()
	fresh := strconv.FormatInt(now.Unix(), 10)
	if err := VerifyWebhookTimestamp(fresh, now, 5*time.Minute); err != nil {
		t.Fatalf("expected fresh timestamp to verify: %v", err)
	}

	stale := strconv.FormatInt(now.Add(-time.Hour).Unix(), 10)
	if err := VerifyWebhookTimestamp(stale, now, 5*time.Minute); err == nil {
		t.Fatalf("expected stale timestamp to fail")
	}

	if err := VerifyWebhookTimestamp("garbage", now, 5*time.Minute); err == nil {
		t.Fatalf("expected parse failure")
	}
}
