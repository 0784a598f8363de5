package testutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// StripeSignature builds a Stripe-Signature header for payload.
func StripeSignature(secret string, payload []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

// StripeEvent renders a minimal Stripe event envelope around object.
func StripeEvent(id, eventType, object string) []byte {
	return []byte(`{"id":"` + id + `","object":"event","api_version":"2020-08-27","type":"` + eventType +
		`","data":{"object":` + object + `}}`)
}
