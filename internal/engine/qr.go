package engine

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// QRValidator decides whether a decoded QR payload is the authorized
// credential. The configured value may be either the raw shared secret or
// its sha256 hex digest, so validation runs an ordered check list: direct
// equality first, hashed equality second. Both are equality checks, so the
// order never changes the result; it exists to keep the policy auditable.
type QRValidator struct {
	checks []func(payload string) bool
}

func NewQRValidator(authorizedValue string) *QRValidator {
	authorized := []byte(authorizedValue)

	equal := func(payload string) bool {
		return subtle.ConstantTimeCompare([]byte(payload), authorized) == 1
	}
	hashedEqual := func(payload string) bool {
		sum := sha256.Sum256([]byte(payload))
		return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), authorized) == 1
	}

	return &QRValidator{checks: []func(string) bool{equal, hashedEqual}}
}

// Validate reports whether the payload is authorized. A frame with no QR
// symbol (found == false) is never valid. Pure: issuing sessions and logging
// are the caller's responsibility.
func (v *QRValidator) Validate(payload string, found bool) bool {
	if !found || payload == "" {
		return false
	}
	for _, check := range v.checks {
		if check(payload) {
			return true
		}
	}
	return false
}
