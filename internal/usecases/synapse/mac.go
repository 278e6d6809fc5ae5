package synapse

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
)

// nonAdminSuffix closes the MAC input of every non-admin registration.
const nonAdminSuffix = "notadmin"

// ComputeMAC signs a shared-secret registration the way Synapse expects:
// HMAC-SHA1 keyed by the shared secret over
// nonce NUL username NUL password NUL "notadmin", lowercase hex encoded.
func ComputeMAC(nonce, username, password, sharedSecret string) string {
	mac := hmac.New(sha1.New, []byte(sharedSecret))
	for i, part := range []string{nonce, username, password, nonAdminSuffix} {
		if i > 0 {
			mac.Write([]byte{0})
		}
		mac.Write([]byte(part))
	}
	return hex.EncodeToString(mac.Sum(nil))
}
