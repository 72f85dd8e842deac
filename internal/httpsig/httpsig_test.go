package httpsig

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"strings"
	"testing"

	"github.com/go-fed/httpsig"
	"github.com/stretchr/testify/require"
)

func TestSignRequest(t *testing.T) {
	require := require.New(t)
	req, err := http.NewRequest("GET", "https://example.com/users/foo", nil)
	require.NoError(err)
	req.Header.Set("Accept", "application/ld+json")

	const keyID = "https://example.com#main-key"
	privatekey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(err)
	pubKey := &privatekey.PublicKey

	err = Sign(req, keyID, privatekey, nil)
	require.NoError(err)

	// cross-check our signer against the go-fed verifier
	verifier, err := httpsig.NewVerifier(req)
	require.NoError(err)
	require.Equal(keyID, verifier.KeyId())
	err = verifier.Verify(pubKey, httpsig.RSA_SHA256)
	require.NoError(err, "req.Signature: %s", req.Header.Get("Signature"))
}

func TestSignedPOSTRoundTrip(t *testing.T) {
	require := require.New(t)
	body := []byte(`{"@context":"https://www.w3.org/ns/activitystreams"}`)
	req, err := http.NewRequest("POST", "https://example.com/inbox", strings.NewReader(string(body)))
	require.NoError(err)

	privatekey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(err)

	err = Sign(req, "https://remote.example/u/bob#main-key", privatekey, body)
	require.NoError(err)

	sig, err := ParseSignature(req.Header.Get("Signature"))
	require.NoError(err)
	require.Equal("https://remote.example/u/bob#main-key", sig.KeyID)
	require.Equal("rsa-sha256", sig.Algorithm)
	require.Equal([]string{"(request-target)", "host", "date", "digest"}, sig.Headers)

	require.NoError(CheckDigest(req.Header.Get("Digest"), body))

	signingString, err := SigningString(req, sig.Headers)
	require.NoError(err)
	require.True(strings.HasPrefix(signingString, "(request-target): post /inbox\n"))
	require.NoError(Verify(&privatekey.PublicKey, sig.Algorithm, signingString, sig.Signature))
}

func TestCheckDigest(t *testing.T) {
	tc := []struct {
		name   string
		header string
		body   string
		ok     bool
	}{
		{"matching digest", "SHA-256=uU0nuZNNPgilLlLX2n2r+sSE7+N6U4DukIj3rOLvzek=", "hello world", true},
		{"body does not match", "SHA-256=uU0nuZNNPgilLlLX2n2r+sSE7+N6U4DukIj3rOLvzek=", "hello there", false},
		{"unsupported algorithm", "SHA-512=uU0nuZNNPgilLlLX2n2r+sSE7+N6U4DukIj3rOLvzek=", "hello world", false},
		{"malformed header", "what even is this", "hello world", false},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckDigest(tt.header, []byte(tt.body))
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

// A valid signature over a tampered body must still be rejected by the
// digest check; the signature only covers the digest header, not the body.
func TestDigestMismatchBeatsValidSignature(t *testing.T) {
	require := require.New(t)
	body := []byte(`{"type":"Create"}`)
	req, err := http.NewRequest("POST", "https://example.com/inbox", strings.NewReader(string(body)))
	require.NoError(err)

	privatekey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(err)
	require.NoError(Sign(req, "https://remote.example/u/bob#main-key", privatekey, body))

	tampered := []byte(`{"type":"Delete"}`)

	sig, err := ParseSignature(req.Header.Get("Signature"))
	require.NoError(err)
	signingString, err := SigningString(req, sig.Headers)
	require.NoError(err)
	// the signature itself still verifies
	require.NoError(Verify(&privatekey.PublicKey, sig.Algorithm, signingString, sig.Signature))
	// but the digest check fails for the tampered body
	require.Error(CheckDigest(req.Header.Get("Digest"), tampered))
}

func TestParseSignatureErrors(t *testing.T) {
	tc := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"missing keyId", `algorithm="rsa-sha256",signature="aGVsbG8="`},
		{"missing signature", `keyId="https://example.com#main-key",algorithm="rsa-sha256"`},
		{"bad base64", `keyId="https://example.com#main-key",signature="%%%"`},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSignature(tt.header)
			require.Error(t, err)
		})
	}
}
