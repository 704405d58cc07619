package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dishusingla001/door-lock-server/internal/observability"
)

// SessionIssuer mints opaque tokens after successful QR validation. Tokens
// are a one-way digest of the high-resolution clock plus a fresh UUID, so
// consecutive issues never collide. Sessions carry no identity (QR access is
// a shared secret), never expire within the process lifetime, and are lost on
// restart. Expiry and single-use consumption are known hardening candidates.
type SessionIssuer struct {
	mu       sync.RWMutex
	sessions map[string]bool
}

func NewSessionIssuer() *SessionIssuer {
	return &SessionIssuer{sessions: make(map[string]bool)}
}

// Issue generates a fresh session token and records it as valid.
func (s *SessionIssuer) Issue() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", time.Now().UnixNano(), uuid.NewString())))
	id := hex.EncodeToString(sum[:])

	s.mu.Lock()
	s.sessions[id] = true
	s.mu.Unlock()

	observability.SessionsIssued.Inc()
	return id
}

// Valid reports whether the token was issued by this process.
func (s *SessionIssuer) Valid(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Count returns the number of sessions issued so far.
func (s *SessionIssuer) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
