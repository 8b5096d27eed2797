package e2ee

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// DecryptFailedPlaceholder is rendered in place of a message that no
// candidate key could open. A single bad message must not break the
// rest of a conversation.
const DecryptFailedPlaceholder = "[message could not be decrypted]"

const (
	fallbackSecretPrefix = "fieldmap-e2e-fallback:"
	fallbackSaltPrefix   = "fieldmap-salt-"
	fallbackIterations   = 100000
	nonceSize            = 12
	keySize              = 32
)

// PeerKeySource resolves a peer's published public key. A nil key with
// a nil error means the peer has never published one.
type PeerKeySource interface {
	PeerPublicKey(ctx context.Context, peerID string) (*ecdh.PublicKey, error)
}

// Cipher encrypts and decrypts message envelopes for one local
// identity. The ECDH path is preferred; the PBKDF2 fallback exists
// only so messages can flow before a peer has published a key. The
// fallback is derivable from the two user ids alone and is a known,
// accepted weakness of the scheme, not an oversight.
type Cipher struct {
	priv  *ecdh.PrivateKey
	peers PeerKeySource
}

// NewCipher builds a Cipher around a local private key and a peer key
// source.
func NewCipher(priv *ecdh.PrivateKey, peers PeerKeySource) *Cipher {
	return &Cipher{priv: priv, peers: peers}
}

// Encrypt produces base64 ciphertext and nonce for one message. A
// fresh nonce is drawn for every call; nonces are never reused under a
// given key.
func (c *Cipher) Encrypt(ctx context.Context, plaintext, senderID, receiverID string) (string, string, error) {
	key, err := c.encryptionKey(ctx, senderID, receiverID)
	if err != nil {
		return "", "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), base64.StdEncoding.EncodeToString(nonce), nil
}

// Decrypt tries each candidate key in order and returns the first
// successful authenticated decryption. The receiver cannot know which
// path the sender used, so both are always tried. All failures,
// including malformed base64, degrade to the placeholder.
func (c *Cipher) Decrypt(ctx context.Context, encryptedContent, iv, senderID, receiverID string) string {
	ciphertext, err := base64.StdEncoding.DecodeString(encryptedContent)
	if err != nil {
		return DecryptFailedPlaceholder
	}
	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return DecryptFailedPlaceholder
	}

	for _, key := range c.candidateKeys(ctx, senderID, receiverID) {
		block, err := aes.NewCipher(key)
		if err != nil {
			continue
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil || len(nonce) != gcm.NonceSize() {
			continue
		}
		plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
		if err == nil {
			return string(plaintext)
		}
	}
	return DecryptFailedPlaceholder
}

// encryptionKey picks the path deterministically for sending: ECDH
// when the receiver has published a key, fallback otherwise.
func (c *Cipher) encryptionKey(ctx context.Context, senderID, receiverID string) ([]byte, error) {
	peerKey, err := c.peers.PeerPublicKey(ctx, receiverID)
	if err == nil && peerKey != nil {
		return c.priv.ECDH(peerKey)
	}
	return fallbackKey(senderID, receiverID), nil
}

// candidateKeys orders the decryption attempts: the ECDH secret with
// the sender (our peer when receiving) first, then the fallback.
func (c *Cipher) candidateKeys(ctx context.Context, senderID, receiverID string) [][]byte {
	var keys [][]byte

	peerKey, err := c.peers.PeerPublicKey(ctx, senderID)
	if err == nil && peerKey != nil {
		if shared, err := c.priv.ECDH(peerKey); err == nil {
			keys = append(keys, shared)
		}
	}

	return append(keys, fallbackKey(senderID, receiverID))
}

// fallbackKey derives the pair key from the lexicographically sorted
// user ids, so both parties compute the same key regardless of who
// sends.
func fallbackKey(userID1, userID2 string) []byte {
	pair := sortedPairKey(userID1, userID2)
	return pbkdf2.Key(
		[]byte(fallbackSecretPrefix+pair),
		[]byte(fallbackSaltPrefix+pair),
		fallbackIterations,
		keySize,
		sha256.New,
	)
}

func sortedPairKey(userID1, userID2 string) string {
	ids := []string{userID1, userID2}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}
