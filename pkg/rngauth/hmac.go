// Package rngauth implements the HMAC-over-body authentication shared by
// the mixer and generator control planes.
package rngauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Key is the process-wide authentication secret, loaded once at startup.
type Key []byte

// Sign returns the hex-encoded HMAC-SHA256 of data under key.
func (k Key) Sign(data []byte) string {
	mac := hmac.New(sha256.New, k)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether received is a valid hex-encoded HMAC-SHA256 of
// data under key, using a constant-time comparison.
func (k Key) Verify(received string, data []byte) bool {
	expected, err := hex.DecodeString(received)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, k)
	mac.Write(data)
	return hmac.Equal(expected, mac.Sum(nil))
}

// LoadKey reads the auth key from raw bytes, rejecting an empty key.
// A missing API_AUTH_KEY is a configuration error and must be fatal at
// startup (spec §7).
func LoadKey(raw string) (Key, error) {
	if raw == "" {
		return nil, fmt.Errorf("rngauth: API_AUTH_KEY is not set")
	}
	return Key(raw), nil
}
