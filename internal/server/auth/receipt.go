// Package auth issues and verifies upload receipts: HS256 JWTs that bind a
// snapshot ID to the digest of the envelope it arrived in.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/deviceguard/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "deviceguard-collector"

// Claims are the registered claims plus the envelope digest. Subject holds
// the snapshot ID.
type Claims struct {
	jwt.RegisteredClaims
	EnvelopeSHA256 string `json:"env_sha256"`
}

// Receipt is the verified content of a receipt token.
type Receipt struct {
	SnapshotID     string
	EnvelopeSHA256 string
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// EnvelopeDigest is the hex SHA-256 of a raw envelope body.
func EnvelopeDigest(envelope []byte) string {
	sum := sha256.Sum256(envelope)
	return hex.EncodeToString(sum[:])
}

func GenerateReceipt(snapshotID string, envelope []byte, secretKey []byte, now time.Time, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   snapshotID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		EnvelopeSHA256: EnvelopeDigest(envelope),
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// ParseReceipt verifies tokenString and returns its content. Any failure,
// including expiry, wraps common.ErrInvalidToken.
func ParseReceipt(tokenString string, secretKey []byte) (*Receipt, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", common.ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	r := &Receipt{SnapshotID: claims.Subject, EnvelopeSHA256: claims.EnvelopeSHA256}
	if claims.IssuedAt != nil {
		r.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		r.ExpiresAt = claims.ExpiresAt.Time
	}
	return r, nil
}
