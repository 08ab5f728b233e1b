package qstash

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignatureHeader carries the delivery signature JWT.
const SignatureHeader = "Upstash-Signature"

const issuer = "Upstash"

const defaultClockTolerance = 5 * time.Second

var (
	// ErrMissingSignature is returned when a delivery carries no signature.
	ErrMissingSignature = errors.New("missing signature")

	// ErrSignatureInvalid is returned when a signature does not verify
	// against any configured signing key.
	ErrSignatureInvalid = errors.New("invalid signature")

	// ErrNoSigningKeys is returned when a verifier is built without keys.
	ErrNoSigningKeys = errors.New("no signing keys configured")
)

// signatureClaims are the claims QStash puts in a delivery signature.
type signatureClaims struct {
	// Body is base64url(SHA-256(raw request body)).
	Body string `json:"body"`
	jwt.RegisteredClaims
}

// VerifierOption customizes a Verifier.
type VerifierOption func(*Verifier)

// WithClockTolerance sets the leeway applied to exp and nbf.
func WithClockTolerance(d time.Duration) VerifierOption {
	return func(v *Verifier) { v.leeway = d }
}

// WithURLCheck requires the token subject to equal the delivery URL.
func WithURLCheck() VerifierOption {
	return func(v *Verifier) { v.checkURL = true }
}

// WithClock overrides the time source used to validate exp and nbf.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// Verifier checks QStash delivery signatures against the current signing
// key, falling back to the next key during rotation.
type Verifier struct {
	keys     [][]byte
	leeway   time.Duration
	checkURL bool
	now      func() time.Time
}

// NewVerifier creates a Verifier. At least one key must be non-empty.
func NewVerifier(currentKey, nextKey string, opts ...VerifierOption) (*Verifier, error) {
	v := &Verifier{leeway: defaultClockTolerance, now: time.Now}
	for _, k := range []string{currentKey, nextKey} {
		if k = strings.TrimSpace(k); k != "" {
			v.keys = append(v.keys, []byte(k))
		}
	}
	if len(v.keys) == 0 {
		return nil, ErrNoSigningKeys
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify authenticates a delivery. body must be the raw, unparsed request
// body. url is the delivery URL, compared with the token subject only when
// the verifier was built WithURLCheck. Any failure is an error.
func (v *Verifier) Verify(signature string, body []byte, url string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}

	var lastErr error
	for _, key := range v.keys {
		if err := v.verifyWithKey(signature, key, body, url); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrSignatureInvalid, lastErr)
}

func (v *Verifier) verifyWithKey(signature string, key, body []byte, url string) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.checkURL {
		opts = append(opts, jwt.WithSubject(url))
	}

	var claims signatureClaims
	_, err := jwt.ParseWithClaims(signature, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	}, opts...)
	if err != nil {
		return err
	}

	want := BodyHash(body)
	got := strings.TrimRight(claims.Body, "=")
	if subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return errors.New("body hash mismatch")
	}
	return nil
}

// BodyHash returns the unpadded base64url SHA-256 digest QStash signs.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
