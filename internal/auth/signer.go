package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/taskflowhq/taskflow/pkg/errors"
)

// Action token purposes. The purpose is mixed into the signing key, so a
// verification token can never be replayed as a reset token.
const (
	PurposeEmailVerification = "email-verification"
	PurposePasswordReset     = "password-reset"
)

// Signer issues and verifies URL-safe, timestamped, single-purpose tokens
// for email verification and password reset links. Tokens are HMAC-SHA256
// signed and carry their issue time; verification enforces a max age.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer from the shared application secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign produces a token binding the payload (typically an email address) to
// the given purpose and the current time.
func (s *Signer) Sign(payload, purpose string) string {
	return s.signAt(payload, purpose, time.Now().UTC())
}

func (s *Signer) signAt(payload, purpose string, now time.Time) string {
	body := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(body[:8], uint64(now.Unix()))
	copy(body[8:], payload)

	encoded := base64.RawURLEncoding.EncodeToString(body)
	sig := s.signature(encoded, purpose)

	return encoded + "." + sig
}

// Verify checks the token's signature and age for the given purpose and
// returns the embedded payload. Tampered, expired, and wrong-purpose tokens
// all yield the same error.
func (s *Signer) Verify(token, purpose string, maxAge time.Duration) (string, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", apperrors.InvalidInput("invalid or expired token")
	}

	expected := s.signature(encoded, purpose)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", apperrors.InvalidInput("invalid or expired token")
	}

	body, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(body) < 8 {
		return "", apperrors.InvalidInput("invalid or expired token")
	}

	issuedAt := time.Unix(int64(binary.BigEndian.Uint64(body[:8])), 0)
	if time.Since(issuedAt) > maxAge {
		return "", apperrors.InvalidInput("invalid or expired token")
	}

	return string(body[8:]), nil
}

func (s *Signer) signature(encoded, purpose string) string {
	key := hmac.New(sha256.New, s.secret)
	fmt.Fprint(key, purpose)
	derived := key.Sum(nil)

	mac := hmac.New(sha256.New, derived)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
