package e2ee

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticKeySource map[string]*ecdh.PublicKey

func (s staticKeySource) PeerPublicKey(_ context.Context, peerID string) (*ecdh.PublicKey, error) {
	return s[peerID], nil
}

func newKeyPair(t *testing.T) *ecdh.PrivateKey {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	return priv
}

func TestEncryptDecryptWithPublishedKeys(t *testing.T) {
	alice := newKeyPair(t)
	bob := newKeyPair(t)

	aliceCipher := NewCipher(alice, staticKeySource{"bob": bob.PublicKey()})
	bobCipher := NewCipher(bob, staticKeySource{"alice": alice.PublicKey()})

	ciphertext, iv, err := aliceCipher.Encrypt(context.Background(), "meet at the north gate", "alice", "bob")
	require.NoError(t, err)
	require.NotEmpty(t, ciphertext)
	require.NotEmpty(t, iv)

	plaintext := bobCipher.Decrypt(context.Background(), ciphertext, iv, "alice", "bob")
	require.Equal(t, "meet at the north gate", plaintext)
}

func TestFallbackWhenReceiverUnpublished(t *testing.T) {
	alice := newKeyPair(t)
	bob := newKeyPair(t)

	// Neither side has published a key, so both must land on the pair
	// fallback.
	aliceCipher := NewCipher(alice, staticKeySource{})
	bobCipher := NewCipher(bob, staticKeySource{})

	ciphertext, iv, err := aliceCipher.Encrypt(context.Background(), "fallback path", "alice", "bob")
	require.NoError(t, err)

	plaintext := bobCipher.Decrypt(context.Background(), ciphertext, iv, "alice", "bob")
	require.Equal(t, "fallback path", plaintext)
}

func TestDecryptTriesFallbackAfterECDH(t *testing.T) {
	alice := newKeyPair(t)
	bob := newKeyPair(t)

	// Alice sent before bob published, so the message is under the
	// fallback key. Bob now sees alice's public key and tries ECDH
	// first; the fallback candidate must still open the message.
	aliceCipher := NewCipher(alice, staticKeySource{})
	bobCipher := NewCipher(bob, staticKeySource{"alice": alice.PublicKey()})

	ciphertext, iv, err := aliceCipher.Encrypt(context.Background(), "sent early", "alice", "bob")
	require.NoError(t, err)

	plaintext := bobCipher.Decrypt(context.Background(), ciphertext, iv, "alice", "bob")
	require.Equal(t, "sent early", plaintext)
}

func TestFallbackKeyIsOrderIndependent(t *testing.T) {
	require.Equal(t, fallbackKey("alice", "bob"), fallbackKey("bob", "alice"))
	require.NotEqual(t, fallbackKey("alice", "bob"), fallbackKey("alice", "carol"))
}

func TestNoncesAreFreshPerMessage(t *testing.T) {
	alice := newKeyPair(t)
	cipher := NewCipher(alice, staticKeySource{})

	_, iv1, err := cipher.Encrypt(context.Background(), "same plaintext", "alice", "bob")
	require.NoError(t, err)
	_, iv2, err := cipher.Encrypt(context.Background(), "same plaintext", "alice", "bob")
	require.NoError(t, err)
	require.NotEqual(t, iv1, iv2)
}

func TestDecryptDegradesToPlaceholder(t *testing.T) {
	alice := newKeyPair(t)
	bob := newKeyPair(t)
	bobCipher := NewCipher(bob, staticKeySource{"alice": alice.PublicKey()})

	aliceCipher := NewCipher(alice, staticKeySource{"bob": bob.PublicKey()})
	ciphertext, iv, err := aliceCipher.Encrypt(context.Background(), "intact", "alice", "bob")
	require.NoError(t, err)

	// Tampered nonce fails GCM authentication.
	require.Equal(t, DecryptFailedPlaceholder, bobCipher.Decrypt(context.Background(), ciphertext, "AAAAAAAAAAAAAAAA", "alice", "bob"))
	// Malformed base64 on either field.
	require.Equal(t, DecryptFailedPlaceholder, bobCipher.Decrypt(context.Background(), "%%%not-base64%%%", iv, "alice", "bob"))
	require.Equal(t, DecryptFailedPlaceholder, bobCipher.Decrypt(context.Background(), ciphertext, "%%%not-base64%%%", "alice", "bob"))
}

func TestWrongPeerCannotDecrypt(t *testing.T) {
	alice := newKeyPair(t)
	bob := newKeyPair(t)
	mallory := newKeyPair(t)

	aliceCipher := NewCipher(alice, staticKeySource{"bob": bob.PublicKey()})
	malloryCipher := NewCipher(mallory, staticKeySource{"alice": alice.PublicKey()})

	ciphertext, iv, err := aliceCipher.Encrypt(context.Background(), "for bob only", "alice", "bob")
	require.NoError(t, err)

	require.Equal(t, DecryptFailedPlaceholder, malloryCipher.Decrypt(context.Background(), ciphertext, iv, "alice", "bob"))
}

func TestFileKeyStoreLoadIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "identity.json")
	store := NewFileKeyStore(path)

	first, err := store.Load()
	require.NoError(t, err)

	second, err := NewFileKeyStore(path).Load()
	require.NoError(t, err)

	require.True(t, first.Equal(second))
	require.True(t, first.PublicKey().Equal(second.PublicKey()))
}

func TestJWKRoundTrip(t *testing.T) {
	priv := newKeyPair(t)

	encoded, err := PublicKeyToJWK(priv.PublicKey())
	require.NoError(t, err)

	decoded, err := PublicKeyFromJWK(encoded)
	require.NoError(t, err)
	require.True(t, priv.PublicKey().Equal(decoded))
}

func TestJWKAcceptsBrowserExport(t *testing.T) {
	// P-256 key from RFC 7515 appendix A.3, byte-identical to what
	// crypto.subtle.exportKey("jwk", ...) produces for the same key.
	fixture := `{"kty":"EC","crv":"P-256",` +
		`"x":"f83OJ3D2xF1Bg8vub9tLe1gHMzV76e8Tus9uPHvRVEU",` +
		`"y":"x_FEzRu9m36HLN_tue659LNpXW6pCyStikYjKIWI5a0"}`

	pub, err := PublicKeyFromJWK(fixture)
	require.NoError(t, err)

	reencoded, err := PublicKeyToJWK(pub)
	require.NoError(t, err)
	require.JSONEq(t, fixture, reencoded)
}

func TestJWKRejectsWrongCurve(t *testing.T) {
	_, err := PublicKeyFromJWK(`{"kty":"EC","crv":"P-384","x":"AA","y":"AA"}`)
	require.Error(t, err)
}
