package payments

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"
)

const testSecret = "whsec_" + "dGVzdC1zaWduaW5nLWtleS1mb3Itd2ViaG9va3M="

func signedHeaders(t *testing.T, payload []byte, secret string) SignatureHeaders {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := SignWebhook(payload, "msg_test", ts, secret)
	if err != nil {
		t.Fatalf("signing failed: %v", err)
	}
	return SignatureHeaders{ID: "msg_test", Timestamp: ts, Signature: sig}
}

func TestVerifyWebhookSignatureValid(t *testing.T) {
	payload := []byte(`{"event_type":"payment_intent.succeeded","id":"pa_1"}`)
	headers := signedHeaders(t, payload, testSecret)

	if err := VerifyWebhookSignature(payload, headers, testSecret, DefaultSignatureTolerance); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifyWebhookSignaturePlainSecret(t *testing.T) {
	// Secrets that are not valid base64 are used as raw bytes.
	secret := "plain-text-secret!"
	payload := []byte(`{"id":"pa_2"}`)
	headers := signedHeaders(t, payload, secret)

	if err := VerifyWebhookSignature(payload, headers, secret, DefaultSignatureTolerance); err != nil {
		t.Fatalf("expected valid signature with plain secret, got %v", err)
	}
}

func TestVerifyWebhookSignatureMultipleEntries(t *testing.T) {
	payload := []byte(`{"id":"pa_3"}`)
	headers := signedHeaders(t, payload, testSecret)
	// Unknown versions and garbage entries before the valid one are skipped.
	headers.Signature = "v2,Zm9v v1," + base64.StdEncoding.EncodeToString([]byte("wrong")) + " " + headers.Signature

	if err := VerifyWebhookSignature(payload, headers, testSecret, DefaultSignatureTolerance); err != nil {
		t.Fatalf("expected one valid entry to suffice, got %v", err)
	}
}

func TestVerifyWebhookSignatureWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"pa_4"}`)
	headers := signedHeaders(t, payload, testSecret)

	err := VerifyWebhookSignature(payload, headers, "whsec_b3RoZXIta2V5LWVudGlyZWx5", DefaultSignatureTolerance)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestVerifyWebhookSignatureTamperedBody(t *testing.T) {
	payload := []byte(`{"id":"pa_5","amount_in_cents":1000}`)
	headers := signedHeaders(t, payload, testSecret)
	tampered := []byte(`{"id":"pa_5","amount_in_cents":100000}`)

	if err := VerifyWebhookSignature(tampered, headers, testSecret, DefaultSignatureTolerance); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for tampered body, got %v", err)
	}
}

func TestVerifyWebhookSignatureStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"pa_6"}`)
	ts := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	sig, err := SignWebhook(payload, "msg_old", ts, testSecret)
	if err != nil {
		t.Fatalf("signing failed: %v", err)
	}
	headers := SignatureHeaders{ID: "msg_old", Timestamp: ts, Signature: sig}

	if err := VerifyWebhookSignature(payload, headers, testSecret, DefaultSignatureTolerance); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected stale timestamp rejection, got %v", err)
	}
	// Zero tolerance disables the drift check entirely.
	if err := VerifyWebhookSignature(payload, headers, testSecret, 0); err != nil {
		t.Fatalf("expected zero tolerance to skip drift check, got %v", err)
	}
}

func TestVerifyWebhookSignatureMissingHeaders(t *testing.T) {
	payload := []byte(`{"id":"pa_7"}`)
	cases := []SignatureHeaders{
		{},
		{ID: "msg_1", Timestamp: fmt.Sprint(time.Now().Unix())},
		{ID: "msg_1", Signature: "v1,Zm9v"},
		{Timestamp: fmt.Sprint(time.Now().Unix()), Signature: "v1,Zm9v"},
	}
	for i, h := range cases {
		if err := VerifyWebhookSignature(payload, h, testSecret, DefaultSignatureTolerance); !errors.Is(err, ErrSignatureInvalid) {
			t.Fatalf("case %d: expected ErrSignatureInvalid, got %v", i, err)
		}
	}
}

func TestVerifyWebhookSignatureMalformedTimestamp(t *testing.T) {
	payload := []byte(`{"id":"pa_8"}`)
	headers := signedHeaders(t, payload, testSecret)
	headers.Timestamp = "not-a-number"

	if err := VerifyWebhookSignature(payload, headers, testSecret, DefaultSignatureTolerance); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected malformed timestamp rejection, got %v", err)
	}
}
