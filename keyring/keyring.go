// Package keyring keeps per-profile credentials on this machine so they
// can be pushed to the host before connecting. It uses the system keyring
// when available, falling back to encrypted local file storage when not.
package keyring

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"

	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/common"
)

// DefaultService is the identifier used in the system keyring.
const DefaultService = "ssht-client"

// Common errors returned by keyring operations.
var (
	ErrNotFound     = errors.New("credential not found")
	ErrEmpty        = errors.New("credentials cannot be empty")
	ErrInvalidFile  = errors.New("credential file is corrupt")
	errInvalidInput = errors.New("profile ID must be positive")
)

// Backend names.
const (
	BackendSystem = "system"
	BackendFile   = "file"
)

// Credentials are the login values for one profile.
type Credentials struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	UUID     string `json:"uuid,omitempty"`
}

// IsZero reports whether no value is set.
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == "" && c.UUID == ""
}

// Options configures a Store.
type Options struct {
	Service string
	// Dir holds the fallback credential file.
	Dir string
	// ForceFile skips the system keyring.
	ForceFile bool
	Logger    *zap.SugaredLogger
}

// Store saves credentials keyed by profile id.
type Store struct {
	service string
	logger  *zap.SugaredLogger

	mu      sync.RWMutex
	useFile bool
	local   map[string]string
	file    string
	key     []byte
}

// Open returns a store, probing the system keyring unless ForceFile is set.
func Open(opts Options) (*Store, error) {
	if opts.Service == "" {
		opts.Service = DefaultService
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Dir == "" {
		dir, err := common.GetConfigDir()
		if err != nil {
			return nil, err
		}
		opts.Dir = dir
	}

	s := &Store{
		service: opts.Service,
		logger:  opts.Logger.Named("keyring"),
		file:    filepath.Join(opts.Dir, common.CredentialsFileName),
	}

	if !opts.ForceFile {
		testKey := opts.Service + "-test-init"
		err := keyring.Set(s.service, testKey, "test")
		if err == nil {
			_ = keyring.Delete(s.service, testKey)
			return s, nil
		}
		s.logger.Debugw("system keyring unavailable, using file", "error", err)
	}
	if err := s.initFile(); err != nil {
		return nil, err
	}
	return s, nil
}

// Backend returns which storage is in use.
func (s *Store) Backend() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.useFile {
		return BackendFile
	}
	return BackendSystem
}

func (s *Store) initFile() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.useFile {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.file), 0700); err != nil {
		return common.WrapError(err, "failed to create credential directory")
	}

	hostname, _ := os.Hostname()
	secret := fmt.Sprintf("%s-%s-%s-%d", s.service, hostname, machineID(), os.Getuid())
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(common.AppID)), key); err != nil {
		return err
	}
	s.key = key
	s.local = make(map[string]string)
	s.useFile = true

	data, err := os.ReadFile(s.file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	plain, err := s.decrypt(data)
	if err != nil {
		s.logger.Warnw("ignoring unreadable credential file", "file", s.file, "error", err)
		return nil
	}
	if err := json.Unmarshal(plain, &s.local); err != nil {
		s.logger.Warnw("ignoring corrupt credential file", "file", s.file, "error", err)
		s.local = make(map[string]string)
	}
	return nil
}

func machineID() string {
	data, err := os.ReadFile("/etc/machine-id")
	if err == nil {
		return strings.TrimSpace(string(data))
	}
	return "default-machine-id"
}

// saveFile writes the local map; callers hold s.mu.
func (s *Store) saveFile() error {
	data, err := json.Marshal(s.local)
	if err != nil {
		return err
	}
	encrypted, err := s.encrypt(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.file, encrypted, 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCredentialStorage, err)
	}
	return nil
}

func (s *Store) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
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

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func (s *Store) decrypt(data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, ErrInvalidFile
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func account(profileID int) (string, error) {
	if profileID <= 0 {
		return "", errInvalidInput
	}
	return "profile-" + strconv.Itoa(profileID), nil
}

// Save stores credentials for a profile.
func (s *Store) Save(profileID int, c Credentials) error {
	acct, err := account(profileID)
	if err != nil {
		return err
	}
	if c.IsZero() {
		return ErrEmpty
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	if s.Backend() == BackendSystem {
		err := keyring.Set(s.service, acct, string(data))
		if err == nil {
			return nil
		}
		s.logger.Warnw("system keyring write failed, falling back to file", "error", err)
		if err := s.initFile(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[acct] = string(data)
	return s.saveFile()
}

// Load returns the credentials stored for a profile.
func (s *Store) Load(profileID int) (Credentials, error) {
	acct, err := account(profileID)
	if err != nil {
		return Credentials{}, err
	}

	var raw string
	if s.Backend() == BackendSystem {
		raw, err = keyring.Get(s.service, acct)
		if errors.Is(err, keyring.ErrNotFound) {
			return Credentials{}, ErrNotFound
		}
		if err != nil {
			return Credentials{}, err
		}
	} else {
		s.mu.RLock()
		v, ok := s.local[acct]
		s.mu.RUnlock()
		if !ok {
			return Credentials{}, ErrNotFound
		}
		raw = v
	}

	var c Credentials
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return c, nil
}

// Delete removes the credentials of a profile. Deleting a missing entry
// is not an error.
func (s *Store) Delete(profileID int) error {
	acct, err := account(profileID)
	if err != nil {
		return err
	}

	if s.Backend() == BackendSystem {
		if err := keyring.Delete(s.service, acct); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.local, acct)
	return s.saveFile()
}

// Exists checks if credentials exist for a profile.
func (s *Store) Exists(profileID int) bool {
	_, err := s.Load(profileID)
	return err == nil
}

// CredentialWriter receives credential values; *bridge.Adapter implements it.
type CredentialWriter interface {
	SetCredential(ctx context.Context, field bridge.CredentialField, value string) error
}

// Apply pushes the non-empty values of c to the host.
func Apply(ctx context.Context, w CredentialWriter, c Credentials) error {
	fields := []struct {
		field bridge.CredentialField
		value string
	}{
		{bridge.FieldUsername, c.Username},
		{bridge.FieldPassword, c.Password},
		{bridge.FieldUUID, c.UUID},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := w.SetCredential(ctx, f.field, f.value); err != nil {
			return fmt.Errorf("set %s: %w", f.field, err)
		}
	}
	return nil
}
