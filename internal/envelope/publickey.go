package envelope

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"
)

// MinRSABits is the smallest accepted modulus.
const MinRSABits = 2048

// ParsePublicKey decodes the collector's key text: Base64 of an X.509
// SubjectPublicKeyInfo, or of a PKCS#1 RSAPublicKey. Surrounding and internal
// whitespace and PEM armour lines are ignored.
func ParsePublicKey(text string) (*rsa.PublicKey, error) {
	der, err := decodeKeyText(text)
	if err != nil {
		return nil, err
	}

	var pub *rsa.PublicKey
	if k, err := x509.ParsePKIXPublicKey(der); err == nil {
		rk, ok := k.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not an RSA key", ErrInvalidPublicKey, k)
		}
		pub = rk
	} else if rk, err2 := x509.ParsePKCS1PublicKey(der); err2 == nil {
		pub = rk
	} else {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	if pub.N.BitLen() < MinRSABits {
		return nil, fmt.Errorf("%w: %d-bit modulus", ErrInvalidPublicKey, pub.N.BitLen())
	}
	return pub, nil
}

// EncodePublicKey renders pub the way the collector serves it: standard
// Base64 of the SubjectPublicKeyInfo, on a single line.
func EncodePublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

func decodeKeyText(text string) ([]byte, error) {
	var sb strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "-----") {
			continue
		}
		for _, r := range line {
			if !unicode.IsSpace(r) {
				sb.WriteRune(r)
			}
		}
	}

	cleaned := sb.String()
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty key text", ErrInvalidPublicKey)
	}

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	for _, enc := range encodings {
		if der, err := enc.DecodeString(cleaned); err == nil {
			return der, nil
		}
	}
	return nil, fmt.Errorf("%w: key text is not Base64", ErrInvalidPublicKey)
}
