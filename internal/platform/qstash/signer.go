package qstash

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSignatureTTL is how long a locally issued signature stays valid.
const DefaultSignatureTTL = 5 * time.Minute

// Sign issues a delivery signature in the same shape QStash produces, so
// that in-process deliveries pass the same Verifier as real ones.
func Sign(key string, body []byte, url string, now time.Time, ttl time.Duration) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrNoSigningKeys
	}
	if ttl <= 0 {
		ttl = DefaultSignatureTTL
	}

	claims := signatureClaims{
		Body: BodyHash(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   url,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        "jwt_" + uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", fmt.Errorf("sign delivery: %w", err)
	}
	return token, nil
}
