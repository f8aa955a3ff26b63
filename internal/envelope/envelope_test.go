package envelope

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func privateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

func publicKeyText(t *testing.T) string {
	t.Helper()
	text, err := EncodePublicKey(&privateKey(t).PublicKey)
	require.NoError(t, err)
	return text
}

func TestSealOpen_RoundTrip(t *testing.T) {
	priv := privateKey(t)

	payloads := [][]byte{
		[]byte(`{}`),
		[]byte(`{"a":"b"}`),
		[]byte(`{"unicode":"设备信息 ✓"}`),
		bytes.Repeat([]byte(`{"k":"v"},`), 10000),
		{},
	}
	for _, scheme := range []Scheme{SchemeOAEPGCM, SchemeLegacyPKCS1ECB} {
		for _, p := range payloads {
			t.Run(scheme.String(), func(t *testing.T) {
				env, err := NewSealer(scheme).Seal(p, &priv.PublicKey)
				require.NoError(t, err)

				got, err := NewOpener(scheme, priv).Open(env)
				require.NoError(t, err)
				assert.Equal(t, len(p), len(got))
				assert.True(t, bytes.Equal(p, got))
			})
		}
	}
}

func TestSeal_EndToEndSmallPayload(t *testing.T) {
	priv := privateKey(t)
	pub, err := ParsePublicKey(publicKeyText(t))
	require.NoError(t, err)

	for _, scheme := range []Scheme{SchemeOAEPGCM, SchemeLegacyPKCS1ECB} {
		t.Run(scheme.String(), func(t *testing.T) {
			env, err := NewSealer(scheme).Seal([]byte(`{"a":"b"}`), pub)
			require.NoError(t, err)

			o := NewOpener(scheme, priv)
			key, err := o.UnwrapKey(env)
			require.NoError(t, err)
			require.Len(t, key, 32)

			plain, err := o.Decrypt(key, env.EncryptedData)
			require.NoError(t, err)
			assert.Equal(t, `{"a":"b"}`, string(plain))
		})
	}
}

func TestSeal_EnvelopeWireFormat(t *testing.T) {
	env, err := NewSealer(SchemeOAEPGCM).Seal([]byte(`{"a":"b"}`), &privateKey(t).PublicKey)
	require.NoError(t, err)

	for _, field := range []string{env.EncryptedData, env.EncryptedKey} {
		assert.NotContains(t, field, "=")
		assert.NotContains(t, field, "+")
		assert.NotContains(t, field, "/")
		assert.NotContains(t, field, "\n")
		_, err := base64.RawURLEncoding.DecodeString(field)
		require.NoError(t, err)
	}

	b, err := json.Marshal(env)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Len(t, m, 2)
	assert.Contains(t, m, "encrypted_data")
	assert.Contains(t, m, "encrypted_key")
}

func TestSeal_FreshSessionKeyPerCall(t *testing.T) {
	priv := privateKey(t)
	s := NewSealer(SchemeOAEPGCM)

	e1, err := s.Seal([]byte(`{"a":"b"}`), &priv.PublicKey)
	require.NoError(t, err)
	e2, err := s.Seal([]byte(`{"a":"b"}`), &priv.PublicKey)
	require.NoError(t, err)

	k1, err := NewOpener(SchemeOAEPGCM, priv).UnwrapKey(e1)
	require.NoError(t, err)
	k2, err := NewOpener(SchemeOAEPGCM, priv).UnwrapKey(e2)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, e1.EncryptedData, e2.EncryptedData)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestSeal_Errors(t *testing.T) {
	priv := privateKey(t)

	t.Run("key generation", func(t *testing.T) {
		s := &Sealer{scheme: SchemeOAEPGCM, rand: failingReader{}}
		_, err := s.Seal([]byte("x"), &priv.PublicKey)
		require.ErrorIs(t, err, ErrKeyGenFailed)
	})

	t.Run("nil key", func(t *testing.T) {
		_, err := NewSealer(SchemeOAEPGCM).Seal([]byte("x"), nil)
		require.ErrorIs(t, err, ErrInvalidPublicKey)
	})

	t.Run("unknown scheme", func(t *testing.T) {
		_, err := NewSealer(Scheme(99)).Seal([]byte("x"), &priv.PublicKey)
		require.ErrorIs(t, err, ErrCipherInitFailed)
	})
}

func TestOpen_Errors(t *testing.T) {
	priv := privateKey(t)
	env, err := NewSealer(SchemeOAEPGCM).Seal([]byte(`{"a":"b"}`), &priv.PublicKey)
	require.NoError(t, err)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name   string
		opener *Opener
		env    *Envelope
	}{
		{"nil envelope", NewOpener(SchemeOAEPGCM, priv), nil},
		{"wrong private key", NewOpener(SchemeOAEPGCM, other), env},
		{"wrong scheme", NewOpener(SchemeLegacyPKCS1ECB, priv), env},
		{"bad key encoding", NewOpener(SchemeOAEPGCM, priv), &Envelope{EncryptedData: env.EncryptedData, EncryptedKey: "!!"}},
		{"bad data encoding", NewOpener(SchemeOAEPGCM, priv), &Envelope{EncryptedData: "!!", EncryptedKey: env.EncryptedKey}},
		{"tampered data", NewOpener(SchemeOAEPGCM, priv), &Envelope{EncryptedData: flipLast(env.EncryptedData), EncryptedKey: env.EncryptedKey}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opener.Open(tt.env)
			require.ErrorIs(t, err, ErrOpenFailed)
		})
	}
}

func TestOpen_AcceptsPaddedFields(t *testing.T) {
	priv := privateKey(t)
	env, err := NewSealer(SchemeLegacyPKCS1ECB).Seal([]byte(`{"a":"b"}`), &priv.PublicKey)
	require.NoError(t, err)

	data, _ := base64.RawURLEncoding.DecodeString(env.EncryptedData)
	key, _ := base64.RawURLEncoding.DecodeString(env.EncryptedKey)
	padded := &Envelope{
		EncryptedData: base64.URLEncoding.EncodeToString(data),
		EncryptedKey:  base64.URLEncoding.EncodeToString(key),
	}

	got, err := NewOpener(SchemeLegacyPKCS1ECB, priv).Open(padded)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"b"}`, string(got))
}

func flipLast(s string) string {
	b, _ := base64.RawURLEncoding.DecodeString(s)
	b[len(b)-1] ^= 0x01
	return base64.RawURLEncoding.EncodeToString(b)
}

func TestPKCS7(t *testing.T) {
	for n := 0; n <= 33; n++ {
		in := bytes.Repeat([]byte{'x'}, n)
		padded := pkcs7Pad(in, 16)
		assert.Zero(t, len(padded)%16)
		assert.Greater(t, len(padded), n)
		out, err := pkcs7Unpad(padded, 16)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}

	_, err := pkcs7Unpad([]byte(strings.Repeat("a", 16)), 16)
	require.Error(t, err)
	_, err = pkcs7Unpad(append(bytes.Repeat([]byte{1}, 15), 0), 16)
	require.Error(t, err)
	_, err = pkcs7Unpad(nil, 16)
	require.Error(t, err)
}

func TestParseScheme(t *testing.T) {
	for _, s := range []Scheme{SchemeOAEPGCM, SchemeLegacyPKCS1ECB} {
		got, err := ParseScheme(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	got, err := ParseScheme("")
	require.NoError(t, err)
	assert.Equal(t, SchemeOAEPGCM, got)

	_, err = ParseScheme("rot13")
	require.Error(t, err)
}
