package envelope

import (
	"fmt"
	"strings"
)

// Scheme selects the payload cipher and the key-wrap padding.
type Scheme int

const (
	SchemeOAEPGCM Scheme = iota
	SchemeLegacyPKCS1ECB
)

func (s Scheme) String() string {
	switch s {
	case SchemeOAEPGCM:
		return "oaep-gcm"
	case SchemeLegacyPKCS1ECB:
		return "pkcs1-ecb"
	default:
		return fmt.Sprintf("scheme(%d)", int(s))
	}
}

// ParseScheme is the inverse of Scheme.String. An empty name selects
// SchemeOAEPGCM.
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "oaep-gcm":
		return SchemeOAEPGCM, nil
	case "pkcs1-ecb", "legacy":
		return SchemeLegacyPKCS1ECB, nil
	default:
		return 0, fmt.Errorf("unknown envelope scheme %q", name)
	}
}
