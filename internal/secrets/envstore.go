package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// envFileName is the encrypted env file inside a project directory.
const envFileName = ".env.age"

// EnvStore persists a project's environment variables as an encrypted
// KEY=VALUE file.
type EnvStore struct {
	svc *Service
}

// NewEnvStore creates an EnvStore backed by the secrets service.
func NewEnvStore(svc *Service) *EnvStore {
	return &EnvStore{svc: svc}
}

// Save encrypts the env map and writes it into the project directory.
// Keys are written sorted so the ciphertext input is deterministic.
func (s *EnvStore) Save(projectPath string, env map[string]string) error {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, env[k])
	}

	ciphertext, err := s.svc.Encrypt([]byte(b.String()))
	if err != nil {
		return fmt.Errorf("encrypting env file: %w", err)
	}

	path := filepath.Join(projectPath, envFileName)
	if err := os.WriteFile(path, ciphertext, 0o600); err != nil {
		return fmt.Errorf("writing env file: %w", err)
	}
	return nil
}

// Load decrypts the project's env file into a map. A missing file is an
// empty environment, not an error.
func (s *EnvStore) Load(projectPath string) (map[string]string, error) {
	ciphertext, err := os.ReadFile(filepath.Join(projectPath, envFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading env file: %w", err)
	}

	plaintext, err := s.svc.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypting env file: %w", err)
	}

	env := make(map[string]string)
	for _, line := range strings.Split(string(plaintext), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		env[key] = value
	}
	return env, nil
}
