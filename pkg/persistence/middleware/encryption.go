package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/ports"
)

// ErrNotSealed is returned when an encrypted store holds a plaintext session.
var ErrNotSealed = errors.New("session is missing encrypted envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte

	// AllowPlaintext accepts sessions saved before encryption was enabled. They are sealed
	// on their next Save.
	AllowPlaintext bool
}

type encryptionMiddleware struct {
	next           ports.SessionStore
	keys           keyring
	allowPlaintext bool
}

// NewEncryptionMiddleware creates a middleware that stores sessions as AES-GCM envelopes.
// Only the ID, stage and timestamps stay readable in the backend.
// It panics when a key is not 32 bytes long.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	keys, err := newKeyring(config.ActiveKey, config.FallbackKeys)
	if err != nil {
		panic(err)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{
			next:           next,
			keys:           keys,
			allowPlaintext: config.AllowPlaintext,
		}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, sessionID string, session *domain.Session) error {
	plainText, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	sealed, err := m.keys.seal(plainText)
	if err != nil {
		return fmt.Errorf("failed to encrypt session: %w", err)
	}
	return m.next.Save(ctx, sessionID, &domain.Session{
		ID:          session.ID,
		Stage:       session.Stage,
		CreatedAt:   session.CreatedAt,
		LastUpdated: session.LastUpdated,
		Sealed:      base64.StdEncoding.EncodeToString(sealed),
	})
}

func (m *encryptionMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	envelope, err := m.next.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if envelope.Sealed == "" {
		if m.allowPlaintext {
			return envelope, nil
		}
		return nil, ErrNotSealed
	}

	sealed, err := base64.StdEncoding.DecodeString(envelope.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sealed session: %w", err)
	}
	plainText, err := m.keys.open(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session %s: %w", sessionID, err)
	}

	var session domain.Session
	if err := json.Unmarshal(plainText, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted session: %w", err)
	}
	return &session, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// keyring holds one AEAD per key; the first one seals.
type keyring []cipher.AEAD

func newKeyring(active []byte, fallback [][]byte) (keyring, error) {
	keys := append([][]byte{active}, fallback...)
	ring := make(keyring, 0, len(keys))
	for i, key := range keys {
		if len(key) != 32 {
			return nil, fmt.Errorf("encryption key %d must be 32 bytes (AES-256), got %d", i, len(key))
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		ring = append(ring, gcm)
	}
	return ring, nil
}

// seal returns nonce || ciphertext under the active key.
func (k keyring) seal(plaintext []byte) ([]byte, error) {
	gcm := k[0]
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// open tries the active key, then each fallback key in order.
func (k keyring) open(sealed []byte) ([]byte, error) {
	for _, gcm := range k {
		n := gcm.NonceSize()
		if len(sealed) < n {
			return nil, errors.New("sealed session too short")
		}
		if plain, err := gcm.Open(nil, sealed[:n], sealed[n:], nil); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}
