package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for deriving the vault key from the passphrase.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// ErrWrongPassphrase is returned when the vault cannot be decrypted.
var ErrWrongPassphrase = errors.New("vault passphrase does not decrypt the vault")

// vaultFile is the on-disk envelope. Data is nonce||ciphertext of the JSON
// encoded secrets map.
type vaultFile struct {
	Salt []byte `json:"salt"`
	Data []byte `json:"data"`
}

// FileVault keeps secrets in an AES-GCM encrypted file keyed by a
// passphrase-derived key.
type FileVault struct {
	path   string
	key    []byte
	salt   []byte
	logger *zap.SugaredLogger

	mu      sync.Mutex
	secrets map[string]map[string]string
}

// NewFileVault opens the vault at path, creating it on first write.
func NewFileVault(path, passphrase string, logger *zap.SugaredLogger) (*FileVault, error) {
	v := &FileVault{
		path:    path,
		logger:  logger,
		secrets: map[string]map[string]string{},
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		v.salt = make([]byte, saltLen)
		if _, err := io.ReadFull(rand.Reader, v.salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		v.key = deriveKey(passphrase, v.salt)
		return v, nil
	case err != nil:
		return nil, fmt.Errorf("read vault: %w", err)
	}

	var envelope vaultFile
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode vault: %w", err)
	}
	v.salt = envelope.Salt
	v.key = deriveKey(passphrase, v.salt)

	plain, err := decrypt(envelope.Data, v.key)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	if err := json.Unmarshal(plain, &v.secrets); err != nil {
		return nil, fmt.Errorf("decode vault contents: %w", err)
	}
	return v, nil
}

// Available reports true: secrets persist in the vault file.
func (v *FileVault) Available() bool { return true }

func (v *FileVault) SetSecret(_ context.Context, service, key, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.secrets[service] == nil {
		v.secrets[service] = map[string]string{}
	}
	v.secrets[service][key] = value
	return v.saveLocked()
}

func (v *FileVault) GetSecret(_ context.Context, service, key string) (string, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	value, ok := v.secrets[service][key]
	return value, ok, nil
}

func (v *FileVault) DeleteSecret(_ context.Context, service, key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.secrets[service][key]; !ok {
		return nil
	}
	delete(v.secrets[service], key)
	return v.saveLocked()
}

// saveLocked encrypts and atomically replaces the vault file.
// The caller must hold v.mu.
func (v *FileVault) saveLocked() error {
	plain, err := json.Marshal(v.secrets)
	if err != nil {
		return fmt.Errorf("encode vault contents: %w", err)
	}
	data, err := encrypt(plain, v.key)
	if err != nil {
		return fmt.Errorf("encrypt vault: %w", err)
	}
	raw, err := json.Marshal(vaultFile{Salt: v.salt, Data: data})
	if err != nil {
		return fmt.Errorf("encode vault: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(v.path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(v.path), ".vault-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing vault: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, v.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	v.logger.Debugw("vault saved", "path", v.path)
	return nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

func encrypt(data, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

func decrypt(data, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
