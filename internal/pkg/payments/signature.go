package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance bounds how far a webhook timestamp may drift
// from our clock before the delivery is rejected as a possible replay.
const DefaultSignatureTolerance = 5 * time.Minute

// SignatureHeaders are the svix-compatible headers Recurrente sends with
// every webhook delivery.
type SignatureHeaders struct {
	ID        string // webhook-id / svix-id
	Timestamp string // webhook-timestamp / svix-timestamp, unix seconds
	Signature string // webhook-signature / svix-signature, "v1,<base64>" list
}

// VerifyWebhookSignature checks an svix-style signature: HMAC-SHA256 over
// "{id}.{timestamp}.{body}" with the base64-decoded secret ("whsec_"
// prefix stripped). The signature header may list several space-separated
// versioned signatures; any valid v1 entry passes. Returns
// ErrSignatureInvalid (wrapped) on every failure mode.
func VerifyWebhookSignature(payload []byte, headers SignatureHeaders, secret string, tolerance time.Duration) error {
	id := strings.TrimSpace(headers.ID)
	ts := strings.TrimSpace(headers.Timestamp)
	sigHeader := strings.TrimSpace(headers.Signature)
	if id == "" || ts == "" || sigHeader == "" {
		return fmt.Errorf("%w: missing signature headers", ErrSignatureInvalid)
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed timestamp", ErrSignatureInvalid)
	}
	if tolerance > 0 {
		drift := time.Since(time.Unix(unix, 0))
		if drift > tolerance || drift < -tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
		}
	}

	key, err := decodeWebhookSecret(secret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", id, ts)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, entry := range strings.Fields(sigHeader) {
		version, value, found := strings.Cut(entry, ",")
		if !found || version != "v1" {
			continue
		}
		got, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching signature", ErrSignatureInvalid)
}

func decodeWebhookSecret(secret string) ([]byte, error) {
	s := strings.TrimSpace(secret)
	if s == "" {
		return nil, fmt.Errorf("empty secret")
	}
	s = strings.TrimPrefix(s, "whsec_")
	if key, err := base64.StdEncoding.DecodeString(s); err == nil {
		return key, nil
	}
	// Secrets configured as plain strings are used as-is.
	return []byte(s), nil
}

// SignWebhook produces a valid v1 signature entry for payload. The webhook
// simulator and the test suite use it to emit deliveries indistinguishable
// from Recurrente's.
func SignWebhook(payload []byte, id, timestamp, secret string) (string, error) {
	key, err := decodeWebhookSecret(secret)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", id, timestamp)
	mac.Write(payload)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
