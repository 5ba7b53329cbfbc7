package broker

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the size of the AES-256 key in bytes.
	KeySize = 32
	// PBKDF2Iterations is the number of iterations for key derivation.
	PBKDF2Iterations = 100000
	// MinSecretLength is the shortest accepted master secret.
	MinSecretLength = 32
)

var (
	ErrInvalidKey        = errors.New("invalid encryption key: must be at least 32 characters")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

// Sealer encrypts session tokens at rest with AES-256-GCM. Each scope
// (broker name) gets its own derived key, and the scope is bound as
// additional data so a blob cannot be replayed under another broker.
type Sealer struct {
	masterKey []byte
}

// NewSealer creates a Sealer from a master secret of at least 32 characters.
func NewSealer(secret string) (*Sealer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrInvalidKey
	}
	hash := sha256.Sum256([]byte(secret))
	return &Sealer{masterKey: hash[:]}, nil
}

func (s *Sealer) gcm(scope string) (cipher.AEAD, error) {
	key := pbkdf2.Key(s.masterKey, []byte("session:"+scope), PBKDF2Iterations, KeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext and returns nonce||ciphertext.
func (s *Sealer) Seal(plaintext []byte, scope string) ([]byte, error) {
	gcm, err := s.gcm(scope)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, []byte(scope)), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed []byte, scope string) ([]byte, error) {
	gcm, err := s.gcm(scope)
	if err != nil {
		return nil, err
	}
	if len(sealed) <= gcm.NonceSize() {
		return nil, ErrInvalidCiphertext
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(scope))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// SealSession encrypts the session tokens for storage.
func (s *Sealer) SealSession(sess *Session, scope string) ([]byte, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	return s.Seal(data, scope)
}

// OpenSession decrypts a stored session.
func (s *Sealer) OpenSession(sealed []byte, scope string) (*Session, error) {
	data, err := s.Open(sealed, scope)
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &sess, nil
}
