package secrets

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/cuemby/redkeeper/pkg/log"
	"github.com/cuemby/redkeeper/pkg/security"
	"github.com/cuemby/redkeeper/pkg/storage"
	"github.com/cuemby/redkeeper/pkg/types"
)

// Well-known secret keys, shared by every unit of the application.
const (
	AdminPasswordKey    = "redis-password"
	SentinelPasswordKey = "sentinel-password"
)

const passwordLength = 16

const passwordCharset = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789"

// Store is the credential store. Values are generated on first request,
// encrypted at rest, and shared through the application-scoped storage.
type Store struct {
	db  storage.Store
	sm  *security.SecretsManager
	log zerolog.Logger
}

// NewStore creates a credential store over the given backing storage.
func NewStore(db storage.Store, sm *security.SecretsManager) *Store {
	return &Store{
		db:  db,
		sm:  sm,
		log: log.WithComponent("secrets"),
	}
}

// GetOrCreate returns the secret for key, generating and persisting a new
// random value when none is stored yet. The read-modify-write happens inside
// one storage transaction, so racing units converge on a single value.
func (s *Store) GetOrCreate(key string) (string, error) {
	encrypted, created, err := s.db.GetOrPutSecret(key, func() ([]byte, error) {
		password, err := GeneratePassword(passwordLength)
		if err != nil {
			return nil, err
		}
		return s.sm.Encrypt([]byte(password))
	})
	if err != nil {
		return "", fmt.Errorf("get-or-create %s: %w: %v", key, types.ErrSecretStoreUnavailable, err)
	}
	if created {
		s.log.Info().Str("key", key).Msg("Created application secret")
	}

	plaintext, err := s.sm.Decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret %s: %w", key, err)
	}
	return string(plaintext), nil
}

// Get returns the secret for key. types.ErrNotYetAvailable is returned when
// no value has been created yet.
func (s *Store) Get(key string) (string, error) {
	encrypted, err := s.db.GetSecret(key)
	if err != nil {
		return "", fmt.Errorf("get %s: %w: %v", key, types.ErrSecretStoreUnavailable, err)
	}
	if encrypted == nil {
		return "", fmt.Errorf("secret %s: %w", key, types.ErrNotYetAvailable)
	}

	plaintext, err := s.sm.Decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret %s: %w", key, err)
	}
	return string(plaintext), nil
}

// Credentials loads both passwords, creating them when missing.
func (s *Store) Credentials() (types.Credentials, error) {
	admin, err := s.GetOrCreate(AdminPasswordKey)
	if err != nil {
		return types.Credentials{}, err
	}
	sentinel, err := s.GetOrCreate(SentinelPasswordKey)
	if err != nil {
		return types.Credentials{}, err
	}
	return types.Credentials{AdminPassword: admin, SentinelPassword: sentinel}, nil
}

// GeneratePassword returns a random alphanumeric string of length n.
func GeneratePassword(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("password length must be positive, got %d", n)
	}

	max := big.NewInt(int64(len(passwordCharset)))
	password := make([]byte, n)
	for i := range password {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		password[i] = passwordCharset[idx.Int64()]
	}
	return string(password), nil
}
