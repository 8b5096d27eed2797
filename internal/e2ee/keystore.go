package e2ee

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileKeyStore persists one ECDH key pair per profile directory as
// WebCrypto-compatible JWK JSON. The pair is generated once and reused
// on every subsequent load; regenerating would break decryption of
// history against peers that cached the old public key.
type FileKeyStore struct {
	path string
}

type storedKeyPair struct {
	PrivateKey string `json:"privateKey"`
	PublicKey  string `json:"publicKey"`
}

// NewFileKeyStore creates a store writing to the given file path.
func NewFileKeyStore(path string) *FileKeyStore {
	return &FileKeyStore{path: path}
}

// Load returns the stored key pair, generating and persisting a new
// one on first use or when the stored file is unreadable.
func (s *FileKeyStore) Load() (*ecdh.PrivateKey, error) {
	data, err := os.ReadFile(s.path)
	if err == nil {
		var stored storedKeyPair
		if json.Unmarshal(data, &stored) == nil && stored.PrivateKey != "" {
			priv, err := privateKeyFromJWK(stored.PrivateKey)
			if err == nil {
				return priv, nil
			}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key store: %w", err)
	}

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	if err := s.save(priv); err != nil {
		return nil, err
	}
	return priv, nil
}

func (s *FileKeyStore) save(priv *ecdh.PrivateKey) error {
	privJWK, err := privateKeyToJWK(priv)
	if err != nil {
		return err
	}
	pubJWK, err := PublicKeyToJWK(priv.PublicKey())
	if err != nil {
		return err
	}

	data, err := json.Marshal(storedKeyPair{PrivateKey: privJWK, PublicKey: pubJWK})
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create key store dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write key store: %w", err)
	}
	return nil
}
