package synapse

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeMAC_KnownVectors(t *testing.T) {
	tests := []struct {
		nonce, username, password, secret string
		want                              string
	}{
		{"abcdef", "alice", "hunter2", "secret", "0bd41f74cb12248a3b9641cb8f93198628290050"},
		{"n0nce", "bob", "p4ss", "shared", "c0c27c409a383a1720397726f14334cc5c81e82b"},
	}
	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeMAC(tt.nonce, tt.username, tt.password, tt.secret))
		})
	}
}

func TestComputeMAC_ByteLayout(t *testing.T) {
	mac := hmac.New(sha1.New, []byte("secret"))
	mac.Write([]byte("abcdef\x00alice\x00hunter2\x00notadmin"))
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, ComputeMAC("abcdef", "alice", "hunter2", "secret"))
}

func TestComputeMAC_NotAdminVariant(t *testing.T) {
	// Same inputs signed as an admin request must not match.
	assert.NotEqual(t, "d6f1fc110e05e46e9015a23b98dc4dc0d8630b84", ComputeMAC("abcdef", "alice", "hunter2", "secret"))
}

func TestComputeMAC_Deterministic(t *testing.T) {
	first := ComputeMAC("nonce", "user", "pass", "key")
	assert.Equal(t, first, ComputeMAC("nonce", "user", "pass", "key"))
	assert.Len(t, first, 40)
	assert.Regexp(t, "^[0-9a-f]{40}$", first)
}

func TestComputeMAC_InputSensitivity(t *testing.T) {
	base := ComputeMAC("nonce", "user", "pass", "key")

	assert.NotEqual(t, base, ComputeMAC("noncf", "user", "pass", "key"))
	assert.NotEqual(t, base, ComputeMAC("nonce", "usef", "pass", "key"))
	assert.NotEqual(t, base, ComputeMAC("nonce", "user", "pasr", "key"))
	assert.NotEqual(t, base, ComputeMAC("nonce", "user", "pass", "kez"))
	// Separators keep field boundaries significant.
	assert.NotEqual(t, ComputeMAC("ab", "c", "pass", "key"), ComputeMAC("a", "bc", "pass", "key"))
}
