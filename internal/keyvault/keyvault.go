// Package keyvault manages the master-secret verifier, the per-install salt
// and the data-encryption key (DEK) held in a SecureKeyStore.
//
// The master secret never encrypts data directly. It is only checked against
// a PBKDF2 verifier; the DEK is random and survives master-secret rotation
// unchanged, so existing ciphertext never needs re-encryption.
package keyvault

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"

	"github.com/atinyakov/passvault/internal/crypto"
)

const (
	// DefaultIterations is the PBKDF2 work factor for the verifier.
	DefaultIterations = 100_000
	// SaltSize is the length of the per-install salt.
	SaltSize = 32
	// VerifierSize is the length of the derived verifier.
	VerifierSize = 32

	// Names of the entries kept in the SecureKeyStore.
	EntrySalt       = "salt"
	EntryVerifier   = "verifier"
	EntryDEK        = "dek"
	EntryIterations = "iterations"
)

var (
	// ErrAlreadyInitialized indicates setup already ran.
	ErrAlreadyInitialized = errors.New("keyvault: master secret already initialized")
	// ErrInvalidCredential indicates the supplied master secret is wrong.
	ErrInvalidCredential = errors.New("keyvault: invalid master secret")
	// ErrKeyNotFound indicates setup never ran.
	ErrKeyNotFound = errors.New("keyvault: key material not found")
	// ErrSecureStoreUnavailable indicates the backing key store failed.
	ErrSecureStoreUnavailable = errors.New("keyvault: secure store unavailable")
)

// SecureKeyStore holds named secret entries. Implementations decide where the
// bytes live; each entry is independently settable, readable and deletable.
type SecureKeyStore interface {
	// Get returns the entry and true, or nil and false if it does not exist.
	Get(name string) ([]byte, bool, error)
	// Set creates or overwrites the entry.
	Set(name string, value []byte) error
	// Delete removes the entry. Deleting a missing entry is not an error.
	Delete(name string) error
}

// KeyVault owns all key material.
type KeyVault struct {
	store      SecureKeyStore
	iterations int
	log        *zap.Logger

	mu sync.RWMutex
}

// Option configures a KeyVault.
type Option func(*KeyVault)

// WithIterations overrides the PBKDF2 work factor used for new verifiers.
// Existing verifiers are always checked with the count they were made with.
func WithIterations(n int) Option {
	return func(kv *KeyVault) {
		if n > 0 {
			kv.iterations = n
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(kv *KeyVault) {
		if l != nil {
			kv.log = l
		}
	}
}

// New constructs a KeyVault over store.
func New(store SecureKeyStore, opts ...Option) *KeyVault {
	kv := &KeyVault{
		store:      store,
		iterations: DefaultIterations,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(kv)
	}
	return kv
}

// HasMasterSecret reports whether a verifier is present.
func (kv *KeyVault) HasMasterSecret() (bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	_, ok, err := kv.get(EntryVerifier)
	return ok, err
}

// SetupMasterSecret runs first-time setup. Salt, verifier and DEK are
// persisted together or not at all.
func (kv *KeyVault) SetupMasterSecret(secret string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if _, ok, err := kv.get(EntryVerifier); err != nil {
		return err
	} else if ok {
		return ErrAlreadyInitialized
	}

	salt, err := randomBytes(SaltSize)
	if err != nil {
		return err
	}
	dek, err := randomBytes(crypto.KeySize)
	if err != nil {
		return err
	}
	defer crypto.Zero(dek)
	verifier := kv.derive(secret, salt, kv.iterations)
	defer crypto.Zero(verifier)

	entries := []struct {
		name  string
		value []byte
	}{
		{EntrySalt, salt},
		{EntryIterations, encodeIterations(kv.iterations)},
		{EntryDEK, dek},
		{EntryVerifier, verifier},
	}
	var written []string
	for _, e := range entries {
		if err := kv.store.Set(e.name, e.value); err != nil {
			err = fmt.Errorf("%w: write %s: %v", ErrSecureStoreUnavailable, e.name, err)
			for _, name := range written {
				if rbErr := kv.store.Delete(name); rbErr != nil {
					err = multierr.Append(err, fmt.Errorf("rollback %s: %w", name, rbErr))
				}
			}
			kv.log.Error("master secret setup failed", zap.String("entry", e.name), zap.Error(err))
			return err
		}
		written = append(written, e.name)
	}
	kv.log.Info("master secret initialized", zap.Int("iterations", kv.iterations))
	return nil
}

// VerifyMasterSecret reports whether secret matches the stored verifier.
func (kv *KeyVault) VerifyMasterSecret(secret string) (bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return kv.verify(secret)
}

func (kv *KeyVault) verify(secret string) (bool, error) {
	salt, ok, err := kv.get(EntrySalt)
	if err != nil {
		return false, err
	}
	stored, ok2, err := kv.get(EntryVerifier)
	if err != nil {
		return false, err
	}
	if !ok || !ok2 {
		return false, ErrKeyNotFound
	}
	iterations, err := kv.storedIterations()
	if err != nil {
		return false, err
	}
	derived := kv.derive(secret, salt, iterations)
	defer crypto.Zero(derived)
	return subtle.ConstantTimeCompare(derived, stored) == 1, nil
}

// RotateMasterSecret replaces salt and verifier after checking oldSecret.
// The DEK is left untouched.
func (kv *KeyVault) RotateMasterSecret(oldSecret, newSecret string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	ok, err := kv.verify(oldSecret)
	if err != nil {
		return err
	}
	if !ok {
		kv.log.Warn("master secret rotation rejected")
		return ErrInvalidCredential
	}

	prevSalt, _, err := kv.get(EntrySalt)
	if err != nil {
		return err
	}
	prevIterations, hadIterations, err := kv.get(EntryIterations)
	if err != nil {
		return err
	}
	prevVerifier, _, err := kv.get(EntryVerifier)
	if err != nil {
		return err
	}

	salt, err := randomBytes(SaltSize)
	if err != nil {
		return err
	}
	verifier := kv.derive(newSecret, salt, kv.iterations)
	defer crypto.Zero(verifier)

	restore := func(err error) error {
		if rbErr := kv.store.Set(EntrySalt, prevSalt); rbErr != nil {
			err = multierr.Append(err, fmt.Errorf("restore salt: %w", rbErr))
		}
		var rbErr error
		if hadIterations {
			rbErr = kv.store.Set(EntryIterations, prevIterations)
		} else {
			rbErr = kv.store.Delete(EntryIterations)
		}
		if rbErr != nil {
			err = multierr.Append(err, fmt.Errorf("restore iterations: %w", rbErr))
		}
		kv.log.Error("master secret rotation failed", zap.Error(err))
		return err
	}

	if err := kv.store.Set(EntrySalt, salt); err != nil {
		return fmt.Errorf("%w: write salt: %v", ErrSecureStoreUnavailable, err)
	}
	if err := kv.store.Set(EntryIterations, encodeIterations(kv.iterations)); err != nil {
		return restore(fmt.Errorf("%w: write iterations: %v", ErrSecureStoreUnavailable, err))
	}
	if err := kv.store.Set(EntryVerifier, verifier); err != nil {
		return restore(fmt.Errorf("%w: write verifier: %v", ErrSecureStoreUnavailable, err))
	}
	crypto.Zero(prevVerifier)
	kv.log.Info("master secret rotated", zap.Int("iterations", kv.iterations))
	return nil
}

// DataEncryptionKey returns a handle to the DEK.
func (kv *KeyVault) DataEncryptionKey() (crypto.Key, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	raw, ok, err := kv.get(EntryDEK)
	if err != nil {
		return crypto.Key{}, err
	}
	if !ok {
		return crypto.Key{}, ErrKeyNotFound
	}
	defer crypto.Zero(raw)
	key, err := crypto.NewKey(raw)
	if err != nil {
		return crypto.Key{}, fmt.Errorf("%w: stored DEK: %v", ErrSecureStoreUnavailable, err)
	}
	return key, nil
}

// Wipe removes all key material. Data sealed under the DEK becomes
// unrecoverable.
func (kv *KeyVault) Wipe() error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	var err error
	for _, name := range []string{EntryVerifier, EntryDEK, EntryIterations, EntrySalt} {
		if dErr := kv.store.Delete(name); dErr != nil {
			err = multierr.Append(err, fmt.Errorf("delete %s: %w", name, dErr))
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSecureStoreUnavailable, err)
	}
	kv.log.Info("key material wiped")
	return nil
}

func (kv *KeyVault) get(name string) ([]byte, bool, error) {
	v, ok, err := kv.store.Get(name)
	if err != nil {
		return nil, false, fmt.Errorf("%w: read %s: %v", ErrSecureStoreUnavailable, name, err)
	}
	return v, ok, nil
}

// storedIterations returns the work factor the current verifier was derived
// with. Vaults created before the count was recorded use the configured one.
func (kv *KeyVault) storedIterations() (int, error) {
	raw, ok, err := kv.get(EntryIterations)
	if err != nil {
		return 0, err
	}
	if !ok {
		return kv.iterations, nil
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("%w: malformed %s entry", ErrSecureStoreUnavailable, EntryIterations)
	}
	n := binary.BigEndian.Uint64(raw)
	if n == 0 || n > 1<<31-1 {
		return 0, fmt.Errorf("%w: malformed %s entry", ErrSecureStoreUnavailable, EntryIterations)
	}
	return int(n), nil
}

func encodeIterations(n int) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(n))
}

func (kv *KeyVault) derive(secret string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(secret), salt, iterations, VerifierSize, sha256.New)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate random bytes: %w", err)
	}
	return b, nil
}
