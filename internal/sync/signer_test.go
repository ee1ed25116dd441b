package sync

import (
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := NewSigner("test-shared-secret", 300)
	now := time.Now()
	timestamp := strconv.FormatInt(now.Unix(), 10)
	body := []byte(`{"sku":"WIN11-PRO"}`)

	signature, err := signer.Sign(http.MethodPost, "/licenceland/v1/sync/product", timestamp, body)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if signature == "" {
		t.Fatalf("expected non-empty signature")
	}

	if err := signer.Verify(http.MethodPost, "/licenceland/v1/sync/product", timestamp, signature, body, now); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
}

func TestVerifyRejectsEmptySecret(t *testing.T) {
	signer := NewSigner("", 300)
	now := time.Now()
	timestamp := strconv.FormatInt(now.Unix(), 10)

	err := signer.Verify(http.MethodPost, "/licenceland/v1/sync/product", timestamp, "whatever", nil, now)
	if !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	signer := NewSigner("test-shared-secret", 300)
	now := time.Now()
	timestamp := strconv.FormatInt(now.Unix(), 10)

	signature, err := signer.Sign(http.MethodPost, "/licenceland/v1/sync/order", timestamp, []byte(`{"order_id":"1"}`))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	err = signer.Verify(http.MethodPost, "/licenceland/v1/sync/order", timestamp, signature, []byte(`{"order_id":"2"}`), now)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	now := time.Now()
	timestamp := strconv.FormatInt(now.Unix(), 10)
	body := []byte(`{}`)

	signature, err := NewSigner("secret-a", 300).Sign(http.MethodPost, "/licenceland/v1/sync/product", timestamp, body)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	err = NewSigner("secret-b", 300).Verify(http.MethodPost, "/licenceland/v1/sync/product", timestamp, signature, body, now)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyReplayWindow(t *testing.T) {
	signer := NewSigner("test-shared-secret", 300)
	now := time.Now()
	body := []byte(`{}`)

	cases := []struct {
		name    string
		offset  time.Duration
		wantErr error
	}{
		{name: "within window past", offset: -299 * time.Second, wantErr: nil},
		{name: "within window future", offset: 299 * time.Second, wantErr: nil},
		{name: "too old", offset: -301 * time.Second, wantErr: ErrStaleTimestamp},
		{name: "too far ahead", offset: 301 * time.Second, wantErr: ErrStaleTimestamp},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			timestamp := strconv.FormatInt(now.Add(tc.offset).Unix(), 10)
			signature, err := signer.Sign(http.MethodPost, "/licenceland/v1/sync/product", timestamp, body)
			if err != nil {
				t.Fatalf("sign failed: %v", err)
			}
			err = signer.Verify(http.MethodPost, "/licenceland/v1/sync/product", timestamp, signature, body, now)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("verify failed: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestVerifyRejectsMalformedTimestamp(t *testing.T) {
	signer := NewSigner("test-shared-secret", 300)
	err := signer.Verify(http.MethodPost, "/licenceland/v1/sync/product", "not-a-number", "sig", nil, time.Now())
	if !errors.Is(err, ErrStaleTimestamp) {
		t.Fatalf("expected ErrStaleTimestamp, got %v", err)
	}
}

func TestVerifyAcceptsDecodedPathSignature(t *testing.T) {
	// 对端用解码后的路径签名,本端收到的是转义路径
	signer := NewSigner("test-shared-secret", 300)
	now := time.Now()
	timestamp := strconv.FormatInt(now.Unix(), 10)

	signature, err := signer.Sign(http.MethodDelete, "/licenceland/v1/sync/product/SKU WITH SPACE", timestamp, nil)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	encoded := "/licenceland/v1/sync/product/SKU%20WITH%20SPACE"
	if err := signer.Verify(http.MethodDelete, encoded, timestamp, signature, nil, now); err != nil {
		t.Fatalf("verify with encoded path failed: %v", err)
	}
}

func TestVerifyAcceptsEscapedPathSignature(t *testing.T) {
	// 对端用转义路径签名,本端拿到的是解码后的路径
	signer := NewSigner("test-shared-secret", 300)
	now := time.Now()
	timestamp := strconv.FormatInt(now.Unix(), 10)

	signature, err := signer.Sign(http.MethodDelete, "/licenceland/v1/sync/product/SKU%20WITH%20SPACE", timestamp, nil)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	decoded := "/licenceland/v1/sync/product/SKU WITH SPACE"
	if err := signer.Verify(http.MethodDelete, decoded, timestamp, signature, nil, now); err != nil {
		t.Fatalf("verify with decoded path failed: %v", err)
	}
}

func TestCanonicalString(t *testing.T) {
	got := CanonicalString("POST", "/licenceland/v1/sync/order", "1700000000", []byte(`{"a":1}`))
	want := "POST\n/licenceland/v1/sync/order\n1700000000\n{\"a\":1}"
	if got != want {
		t.Fatalf("unexpected canonical string, want %q, got %q", want, got)
	}
}
