package auth

import "testing"

func TestCookieSigner_SignVerify(t *testing.T) {
	signer, err := NewCookieSigner([]byte("top-secret"), "BFF-Auth-Session")
	if err != nil {
		t.Fatalf("NewCookieSigner failed: %v", err)
	}

	value := signer.Sign("grant-123")
	grantID, ok := signer.Verify(value)
	if !ok {
		t.Fatalf("expected signature to verify")
	}
	if grantID != "grant-123" {
		t.Fatalf("expected grant-123, got %q", grantID)
	}
}

func TestCookieSigner_VerifyRejectsTampering(t *testing.T) {
	signer, _ := NewCookieSigner([]byte("top-secret"), "BFF-Auth-Session")
	value := signer.Sign("grant-123")

	if _, ok := signer.Verify(value + "x"); ok {
		t.Fatalf("expected tampered signature to fail verification")
	}
	if _, ok := signer.Verify("grant-456." + value[len("grant-123."):]); ok {
		t.Fatalf("expected swapped grant id to fail verification")
	}
	if _, ok := signer.Verify("malformed"); ok {
		t.Fatalf("expected malformed value to fail verification")
	}
}

func TestCookieSigner_DistinctInfoYieldsDistinctKeys(t *testing.T) {
	a, _ := NewCookieSigner([]byte("top-secret"), "a")
	b, _ := NewCookieSigner([]byte("top-secret"), "b")

	value := a.Sign("grant-123")
	if _, ok := b.Verify(value); ok {
		t.Fatalf("expected a value signed under one info string not to verify under another")
	}
}

func TestNewCookieSigner_RejectsEmptySecret(t *testing.T) {
	if _, err := NewCookieSigner(nil, "info"); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
