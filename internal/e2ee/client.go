package e2ee

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// KeyClient talks to the public-key exchange endpoints and implements
// PeerKeySource. Peer keys are cached for the client's lifetime; a
// peer rotating keys mid-session is out of scope.
type KeyClient struct {
	baseURL string
	token   string
	httpc   *http.Client

	mu    sync.Mutex
	cache map[string]*ecdh.PublicKey
}

// NewKeyClient builds a client for the given API base URL and bearer
// token.
func NewKeyClient(baseURL, token string) *KeyClient {
	return &KeyClient{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		cache:   make(map[string]*ecdh.PublicKey),
	}
}

// UploadPublicKey publishes the public half of the local key pair.
func (c *KeyClient) UploadPublicKey(ctx context.Context, priv *ecdh.PrivateKey) error {
	pubJWK, err := PublicKeyToJWK(priv.PublicKey())
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{"publicKey": pubJWK})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/api/auth/public-key", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("upload public key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload public key: status %d", resp.StatusCode)
	}
	return nil
}

// PeerPublicKey fetches and caches a peer's published key. A peer
// without a published key resolves to (nil, nil).
func (c *KeyClient) PeerPublicKey(ctx context.Context, peerID string) (*ecdh.PublicKey, error) {
	c.mu.Lock()
	if key, ok := c.cache[peerID]; ok {
		c.mu.Unlock()
		return key, nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/public-key/"+peerID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch peer key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch peer key: status %d", resp.StatusCode)
	}

	var payload struct {
		UserID    string  `json:"userId"`
		PublicKey *string `json:"publicKey"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode peer key response: %w", err)
	}
	if payload.PublicKey == nil || *payload.PublicKey == "" {
		return nil, nil
	}

	key, err := PublicKeyFromJWK(*payload.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("parse peer key: %w", err)
	}

	c.mu.Lock()
	c.cache[peerID] = key
	c.mu.Unlock()
	return key, nil
}
