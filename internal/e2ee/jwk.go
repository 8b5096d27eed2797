package e2ee

import (
	"crypto/ecdh"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// jwk is the subset of RFC 7517 needed for P-256 ECDH keys. The field
// layout matches what WebCrypto exports, so keys interoperate with
// browser clients.
type jwk struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
	D   string `json:"d,omitempty"`
}

const coordinateSize = 32

// PublicKeyToJWK serializes a P-256 public key as a JWK string.
func PublicKeyToJWK(pub *ecdh.PublicKey) (string, error) {
	raw := pub.Bytes()
	if len(raw) != 1+2*coordinateSize || raw[0] != 4 {
		return "", errors.New("unexpected public key encoding")
	}
	data, err := json.Marshal(jwk{
		Kty: "EC",
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(raw[1 : 1+coordinateSize]),
		Y:   base64.RawURLEncoding.EncodeToString(raw[1+coordinateSize:]),
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PublicKeyFromJWK parses a JWK string into a P-256 public key.
func PublicKeyFromJWK(raw string) (*ecdh.PublicKey, error) {
	var key jwk
	if err := json.Unmarshal([]byte(raw), &key); err != nil {
		return nil, fmt.Errorf("parse jwk: %w", err)
	}
	if key.Kty != "EC" || key.Crv != "P-256" {
		return nil, fmt.Errorf("unsupported key type %s/%s", key.Kty, key.Crv)
	}

	x, err := base64.RawURLEncoding.DecodeString(key.X)
	if err != nil {
		return nil, fmt.Errorf("decode x: %w", err)
	}
	y, err := base64.RawURLEncoding.DecodeString(key.Y)
	if err != nil {
		return nil, fmt.Errorf("decode y: %w", err)
	}
	if len(x) != coordinateSize || len(y) != coordinateSize {
		return nil, errors.New("invalid coordinate length")
	}

	point := make([]byte, 0, 1+2*coordinateSize)
	point = append(point, 4)
	point = append(point, x...)
	point = append(point, y...)
	return ecdh.P256().NewPublicKey(point)
}

func privateKeyToJWK(priv *ecdh.PrivateKey) (string, error) {
	pubJWK, err := PublicKeyToJWK(priv.PublicKey())
	if err != nil {
		return "", err
	}
	var key jwk
	if err := json.Unmarshal([]byte(pubJWK), &key); err != nil {
		return "", err
	}
	key.D = base64.RawURLEncoding.EncodeToString(priv.Bytes())

	data, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func privateKeyFromJWK(raw string) (*ecdh.PrivateKey, error) {
	var key jwk
	if err := json.Unmarshal([]byte(raw), &key); err != nil {
		return nil, fmt.Errorf("parse jwk: %w", err)
	}
	if key.D == "" {
		return nil, errors.New("jwk has no private component")
	}
	d, err := base64.RawURLEncoding.DecodeString(key.D)
	if err != nil {
		return nil, fmt.Errorf("decode d: %w", err)
	}
	return ecdh.P256().NewPrivateKey(d)
}
