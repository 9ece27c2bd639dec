// Package token mints and opens the sealed attendance tokens embedded in
// scannable codes. Tokens are authenticated-encrypted, so tampering is
// detected instead of producing altered fields, and they expire after a
// fixed validity horizon. The codec is stateless; replay protection is the
// validator's job.
package token

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// Validity is the absolute freshness window enforced by Open.
const Validity = 24 * time.Hour

var (
	ErrMalformed = errors.New("token is malformed")
	ErrForged    = errors.New("token failed integrity check")
	ErrExpired   = errors.New("token has expired")
)

// Claims is the compact payload sealed inside a token.
type Claims struct {
	SubjectID     uint   `json:"sid"`
	EventID       uint   `json:"eid"`
	ParticipantID uint   `json:"pid"`
	Kind          string `json:"knd"`
	IssuedAt      int64  `json:"iat"`
}

type Codec struct {
	aead cipher.AEAD
	now  func() time.Time
}

// NewCodec builds a codec around a 32-byte sealing key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("sealing key must be %v bytes, got %v", chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("chacha20poly1305.NewX -> %w", err)
	}

	return &Codec{
		aead: aead,
		now:  time.Now,
	}, nil
}

// Mint seals the claims into an opaque, URL-safe token. A zero IssuedAt is
// stamped with the current time.
func (c *Codec) Mint(claims Claims) (string, error) {
	if claims.IssuedAt == 0 {
		claims.IssuedAt = c.now().Unix()
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("json.Marshal -> %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(payload)+c.aead.Overhead())
	if _, err = rand.Read(nonce); err != nil {
		return "", fmt.Errorf("rand.Read -> %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, payload, nil)

	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open authenticates, decrypts and freshness-checks a token. It never
// returns altered fields: any bit flip fails the AEAD and surfaces as
// ErrForged, transport damage as ErrMalformed, and a stale issued-at as
// ErrExpired.
func (c *Codec) Open(encoded string) (Claims, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Claims{}, ErrMalformed
	}
	if len(sealed) < c.aead.NonceSize()+c.aead.Overhead() {
		return Claims{}, ErrMalformed
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	payload, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Claims{}, ErrForged
	}

	var claims Claims
	if err = json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, ErrMalformed
	}

	issuedAt := time.Unix(claims.IssuedAt, 0)
	if c.now().Sub(issuedAt) > Validity {
		return Claims{}, ErrExpired
	}

	return claims, nil
}
