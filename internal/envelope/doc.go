// Package envelope implements the hybrid encryption used between the agent
// and the collector.
//
// A fresh 256-bit AES session key encrypts the payload, the session key is
// wrapped with the collector's RSA public key, and both ciphertexts travel as
// unpadded base64url text in a two-field JSON object:
//
//	{"encrypted_data": "...", "encrypted_key": "..."}
//
// The pair of algorithms is a protocol parameter fixed per Sealer/Opener:
// SchemeOAEPGCM (AES-256-GCM with a 12-byte nonce prefixed to the ciphertext,
// RSA-OAEP-SHA256 key wrap) or SchemeLegacyPKCS1ECB (AES-256-ECB with PKCS#7
// padding, RSA PKCS#1 v1.5 key wrap) for collectors speaking the older format.
package envelope
