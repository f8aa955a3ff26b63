package envelope

import "errors"

var (
	// ErrKeyGenFailed means the session key could not be generated.
	ErrKeyGenFailed = errors.New("envelope: session key generation failed")

	// ErrInvalidPublicKey means the key text is not Base64, not a public key
	// encoding, not RSA, or shorter than MinRSABits.
	ErrInvalidPublicKey = errors.New("envelope: invalid public key")

	// ErrCipherInitFailed covers payload encryption and key wrapping failures.
	ErrCipherInitFailed = errors.New("envelope: cipher init failed")

	// ErrOpenFailed is returned by Opener when an envelope cannot be decoded,
	// unwrapped or decrypted.
	ErrOpenFailed = errors.New("envelope: open failed")
)
