// Package secrets manages age-encrypted project environment files. A
// project's KEY=VALUE env pairs are stored encrypted on disk and only
// decrypted in memory when the sandbox needs them.
package secrets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"filippo.io/age"
)

var (
	// ErrNoPublicKey is returned when no public key is configured for encryption.
	ErrNoPublicKey = errors.New("no public key configured for encryption")
	// ErrNoPrivateKey is returned when no private key is configured for decryption.
	ErrNoPrivateKey = errors.New("no private key configured for decryption")
	// ErrDecryptionFailed is returned when decryption fails.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrEncryptionFailed is returned when encryption fails.
	ErrEncryptionFailed = errors.New("encryption failed")
	// ErrInvalidKey is returned when a key is invalid.
	ErrInvalidKey = errors.New("invalid key format")
)

// Service encrypts and decrypts project secrets with age. The API server
// usually carries only the public key; workers that inject env vars into
// sandboxes carry the private key too.
type Service struct {
	publicKey  *age.X25519Recipient
	privateKey *age.X25519Identity
	logger     *slog.Logger
}

// Config holds the key material for the secrets service.
type Config struct {
	// AgePublicKey is the age public key for encryption.
	// Format: age1... (Bech32 encoded)
	AgePublicKey string
	// AgePrivateKey is the age private key for decryption.
	// Format: AGE-SECRET-KEY-1... (Bech32 encoded)
	AgePrivateKey string
}

// New creates a Service. At least one of the two keys must be provided;
// which operations are available follows from which keys are present.
func New(cfg Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{logger: logger}

	if cfg.AgePublicKey != "" {
		recipient, err := age.ParseX25519Recipient(cfg.AgePublicKey)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid public key: %v", ErrInvalidKey, err)
		}
		svc.publicKey = recipient
	}
	if cfg.AgePrivateKey != "" {
		identity, err := age.ParseX25519Identity(cfg.AgePrivateKey)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid private key: %v", ErrInvalidKey, err)
		}
		svc.privateKey = identity
	}
	if svc.publicKey == nil && svc.privateKey == nil {
		return nil, fmt.Errorf("%w: no key material provided", ErrInvalidKey)
	}
	return svc, nil
}

// Encrypt encrypts plaintext with the configured public key.
func (s *Service) Encrypt(plaintext []byte) ([]byte, error) {
	if s.publicKey == nil {
		return nil, ErrNoPublicKey
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return buf.Bytes(), nil
}

// Decrypt decrypts age ciphertext with the configured private key.
func (s *Service) Decrypt(ciphertext []byte) ([]byte, error) {
	if s.privateKey == nil {
		return nil, ErrNoPrivateKey
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// CanEncrypt reports whether a public key is configured.
func (s *Service) CanEncrypt() bool { return s.publicKey != nil }

// CanDecrypt reports whether a private key is configured.
func (s *Service) CanDecrypt() bool { return s.privateKey != nil }

// GenerateKeyPair generates a new age key pair.
func GenerateKeyPair() (publicKey, privateKey string, err error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("generating age key pair: %w", err)
	}
	return identity.Recipient().String(), identity.String(), nil
}
