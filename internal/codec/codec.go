// Package codec encrypts chapter content at rest with AES-256-GCM.
//
// The at-rest format is the bit-exact contract other tooling must honor when
// reading the vault directly: three lowercase hex strings joined by colons,
// in fixed order iv:authTag:ciphertext, with a 16-byte IV and a 16-byte tag.
package codec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hollevik/vellum/internal/apperr"
)

const (
	// KeyHexLen is the required length of the configured secret: 32 bytes
	// as 64 hex characters. Any other length is a startup-fatal
	// configuration error, never a per-call one.
	KeyHexLen = 64

	ivSize  = 16
	tagSize = 16

	separator = ":"
)

// Codec holds the vault secret. One instance is built at startup and shared.
type Codec struct {
	key []byte
}

// New validates and decodes the hex-encoded 32-byte secret.
func New(hexKey string) (*Codec, error) {
	if len(hexKey) != KeyHexLen {
		return nil, &apperr.ConfigError{
			Field:  "crypto.secret",
			Reason: fmt.Sprintf("must be %d hex characters, got %d", KeyHexLen, len(hexKey)),
		}
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, &apperr.ConfigError{Field: "crypto.secret", Reason: "not valid hex"}
	}
	return &Codec{key: key}, nil
}

func (c *Codec) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("codec: new cipher: %w", err)
	}
	// 16-byte nonce to match the at-rest contract (GCM defaults to 12).
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("codec: new gcm: %w", err)
	}
	return gcm, nil
}

// Encrypt seals v into the iv:tag:ciphertext hex format. Strings are sealed
// as-is; anything else is canonically JSON-serialized first. A fresh random
// IV is drawn per call, so encrypting the same value twice never yields the
// same output.
func (c *Codec) Encrypt(v any) (string, error) {
	var plaintext []byte
	switch s := v.(type) {
	case string:
		plaintext = []byte(s)
	case []byte:
		plaintext = s
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("codec: serialize: %w", err)
		}
		plaintext = data
	}

	gcm, err := c.aead()
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("codec: read iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ct),
	}, separator), nil
}

// Decrypt opens an encrypted record. Input that does not split into exactly
// three parts fails with apperr.ErrMalformedRecord; a tag mismatch (tamper,
// corruption, or wrong key) fails with apperr.ErrAuthenticationFailed and
// never returns partial plaintext. On success the plaintext is parsed as
// JSON when it looks structured, so both tree content and plain-text
// chapters round-trip transparently; otherwise the raw string is returned.
func (c *Codec) Decrypt(value string) (any, error) {
	parts := strings.Split(value, separator)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: %d parts", apperr.ErrMalformedRecord, len(parts))
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: iv is not hex", apperr.ErrMalformedRecord)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: tag is not hex", apperr.ErrMalformedRecord)
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext is not hex", apperr.ErrMalformedRecord)
	}
	if len(iv) != ivSize || len(tag) != tagSize {
		return nil, fmt.Errorf("%w: bad iv or tag length", apperr.ErrMalformedRecord)
	}

	gcm, err := c.aead()
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return nil, apperr.ErrAuthenticationFailed
	}

	if looksStructured(plaintext) {
		var v any
		if err := json.Unmarshal(plaintext, &v); err == nil {
			return v, nil
		}
	}
	return string(plaintext), nil
}

// DecryptString is Decrypt for callers that carry content as a serialized
// string regardless of shape (the persistence layer does).
func (c *Codec) DecryptString(value string) (string, error) {
	parts := strings.Split(value, separator)
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: %d parts", apperr.ErrMalformedRecord, len(parts))
	}
	v, err := c.Decrypt(value)
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case string:
		return s, nil
	default:
		data, err := json.Marshal(s)
		if err != nil {
			return "", fmt.Errorf("codec: reserialize: %w", err)
		}
		return string(data), nil
	}
}

func looksStructured(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// LooksEncrypted reports whether v matches the at-rest grammar: a string of
// exactly three colon-separated hex-only parts with iv and tag at their
// fixed lengths. It is a heuristic, not a guarantee; short hex-looking
// plaintext can false-positive and callers must tolerate a failed decrypt.
func LooksEncrypted(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	parts := strings.Split(s, separator)
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if !isHex(p) {
			return false
		}
	}
	// The ciphertext part may be empty: sealing an empty string yields
	// iv:tag: and that record must still read back as encrypted.
	return len(parts[0]) == ivSize*2 && len(parts[1]) == tagSize*2
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
