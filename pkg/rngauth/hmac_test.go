package rngauth

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	key, err := LoadKey("super-secret")
	if err != nil {
		t.Fatalf("LoadKey returned error: %v", err)
	}

	body := []byte("hello world")
	sig := key.Sign(body)

	if !key.Verify(sig, body) {
		t.Error("expected valid signature to verify")
	}
	if key.Verify(sig, []byte("tampered")) {
		t.Error("expected signature to fail over a different body")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	key, _ := LoadKey("super-secret")
	if key.Verify("not-hex-!!", []byte("body")) {
		t.Error("expected non-hex signature to fail")
	}
	if key.Verify("", []byte("body")) {
		t.Error("expected empty signature to fail")
	}
}

func TestLoadKeyRejectsEmpty(t *testing.T) {
	if _, err := LoadKey(""); err == nil {
		t.Error("expected LoadKey to reject an empty key")
	}
}

func TestEmptyBodyHMAC(t *testing.T) {
	key, _ := LoadKey("k")
	sig := key.Sign(nil)
	if !key.Verify(sig, []byte{}) {
		t.Error("expected empty-body HMAC (used for GET/DELETE) to verify against an empty slice")
	}
}
