package backend

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gigmarket/gigmarket/internal/models"
)

// SessionStore persists the session between runs.
type SessionStore interface {
	// Load returns the stored session, or nil when there is none.
	Load() (*models.Session, error)
	Save(s *models.Session) error
	Clear() error
}

// FileSessionStore keeps the session in a file sealed with AES-GCM.
type FileSessionStore struct {
	path string
	aead cipher.AEAD
}

// NewAEAD derives an AES-GCM cipher from secret.
func NewAEAD(secret []byte) (cipher.AEAD, error) {
	key := sha256.Sum256(secret)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

// LoadOrCreateKey returns the secret stored at path, generating and
// writing a random one the first time.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key: %w", err)
	}

	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("write key: %w", err)
	}
	return key, nil
}

// NewFileSessionStore returns a store sealing sessions at path with aead.
func NewFileSessionStore(path string, aead cipher.AEAD) *FileSessionStore {
	return &FileSessionStore{path: path, aead: aead}
}

func (f *FileSessionStore) Load() (*models.Session, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	sealed, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil || len(sealed) < f.aead.NonceSize() {
		return nil, errors.New("session file: decode error")
	}
	nonce := sealed[:f.aead.NonceSize()]
	plain, err := f.aead.Open(nil, nonce, sealed[f.aead.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("session file: decryption error: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(plain, &s); err != nil {
		return nil, fmt.Errorf("session file: %w", err)
	}
	return &s, nil
}

func (f *FileSessionStore) Save(s *models.Session) error {
	plain, err := json.Marshal(s)
	if err != nil {
		return err
	}
	nonce := make([]byte, f.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	// nonce || ciphertext
	sealed := f.aead.Seal(nonce, nonce, plain, nil)

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.path, []byte(base64.StdEncoding.EncodeToString(sealed)), 0o600)
}

func (f *FileSessionStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
