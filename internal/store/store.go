package store

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/chacha20poly1305"
)

// Keys used by the session layer.
const (
	KeyUser     = "user"
	KeyDeviceID = "deviceId"
)

// ErrUnavailable is returned when the persistence medium cannot be used at
// all (the directory or key file cannot be created or read).
var ErrUnavailable = errors.New("credential store unavailable")

// CredentialStore is durable key-value persistence for the session record
// and the device identifier. Get reports absence via the bool, never via an
// error; Delete of an absent key is a no-op.
type CredentialStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// FileStore keeps one sealed file per key under a private directory. Values
// are encrypted with XChaCha20-Poly1305 under a per-install random key held
// next to the entries, standing in for a platform keychain.
type FileStore struct {
	dir  string
	aead cipher.AEAD
}

// NewFileStore opens (or initializes) the store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	key, err := loadOrCreateKey(filepath.Join(dir, "store.key"))
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &FileStore{dir: dir, aead: aead}, nil
}

// Get returns the value for key, or ok=false when the key is absent. Entries
// that cannot be read or unsealed are treated as absent so a damaged store
// degrades to the logged-out state instead of wedging startup.
func (s *FileStore) Get(key string) (string, bool, error) {
	blob, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		log.Warn().Err(err).Str("key", key).Msg("Credential entry unreadable, treating as absent")
		return "", false, nil
	}

	nonceSize := chacha20poly1305.NonceSizeX
	if len(blob) < nonceSize {
		log.Warn().Str("key", key).Msg("Credential entry truncated, treating as absent")
		return "", false, nil
	}
	plain, err := s.aead.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Credential entry unsealable, treating as absent")
		return "", false, nil
	}
	return string(plain), true, nil
}

// Set overwrites the value for key, last write wins. The write is atomic
// (temp file + rename) so a crash never leaves a half-written entry.
func (s *FileStore) Set(key, value string) error {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), nil)

	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("failed to write credential entry: %w", err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("failed to commit credential entry: %w", err)
	}
	return nil
}

// Delete removes the entry for key. Deleting an absent key is not an error.
func (s *FileStore) Delete(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete credential entry: %w", err)
	}
	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".enc")
}

func loadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("%w: store key has wrong length", ErrUnavailable)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return key, nil
}
