// Package service orchestrates the key vault, the cipher and the encrypted
// store into the credential operations exposed to callers. It is the only
// layer that ever handles plaintext secrets.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/passvault/internal/crypto"
	"github.com/atinyakov/passvault/internal/models"
	"github.com/atinyakov/passvault/internal/storage"
)

var (
	// ErrNotFound indicates no credential or category has the given id.
	ErrNotFound = errors.New("vault: not found")
	// ErrDecryptionFailed indicates a stored secret could not be opened.
	ErrDecryptionFailed = errors.New("vault: decryption failed")
	// ErrBusy indicates another mutation is in flight.
	ErrBusy = errors.New("vault: busy")
	// ErrBuiltInCategory indicates an attempt to remove a built-in category.
	ErrBuiltInCategory = errors.New("vault: built-in categories cannot be removed")
	// ErrInvalidInput indicates a required field is empty.
	ErrInvalidInput = errors.New("vault: invalid input")
)

// DefaultMaxSecretAge is how long a secret may go unchanged before the
// security report lists it as old.
const DefaultMaxSecretAge = 180 * 24 * time.Hour

// KeyManager defines the key operations needed by the VaultService.
type KeyManager interface {
	// HasMasterSecret reports whether setup has run.
	HasMasterSecret() (bool, error)
	// SetupMasterSecret creates the verifier and the data-encryption key.
	SetupMasterSecret(secret string) error
	// VerifyMasterSecret checks secret against the stored verifier.
	VerifyMasterSecret(secret string) (bool, error)
	// RotateMasterSecret replaces the verifier, keeping the data-encryption key.
	RotateMasterSecret(oldSecret, newSecret string) error
	// DataEncryptionKey returns a fresh handle to the data-encryption key.
	DataEncryptionKey() (crypto.Key, error)
	// Wipe removes all key material.
	Wipe() error
}

// RecordStore defines the persistence operations needed by the VaultService.
type RecordStore interface {
	LoadAll(ctx context.Context) error
	Upsert(ctx context.Context, rec models.Credential) (models.Credential, error)
	Update(ctx context.Context, id string, fn func(*models.Credential) error) (models.Credential, error)
	Remove(ctx context.Context, id string) error
	MigrateDanglingCategoryReferences(ctx context.Context) (int, error)
	UpsertCategory(ctx context.Context, cat models.Category) (models.Category, error)
	RemoveCategory(ctx context.Context, id string) error
	Reset(ctx context.Context) error

	Credentials() []models.Credential
	Credential(id string) (models.Credential, bool)
	Categories() []models.Category
	Category(id string) (models.Category, bool)
}

// NewCredential holds the fields of a credential about to be created.
type NewCredential struct {
	Title      string
	Username   string
	Secret     string
	CategoryID string
	Website    *string
	Notes      *string
	Favorite   bool
}

// CredentialPatch lists the metadata changes to apply to a credential.
// Nil fields are left unchanged.
type CredentialPatch struct {
	Title        *string
	Username     *string
	CategoryID   *string
	Website      *string
	Notes        *string
	Favorite     *bool
	ClearWebsite bool
	ClearNotes   bool
}

// VaultService implements credential management on top of a KeyManager and
// a RecordStore.
type VaultService struct {
	keys   KeyManager
	store  RecordStore
	log    *zap.Logger
	now    func() time.Time
	newID  func() string
	maxAge time.Duration
	events chan Event
}

// Option configures a VaultService.
type Option func(*VaultService)

// WithLogger sets the logger. Secrets are never logged.
func WithLogger(l *zap.Logger) Option {
	return func(s *VaultService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *VaultService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxSecretAge sets the age after which a secret is reported as old.
func WithMaxSecretAge(d time.Duration) Option {
	return func(s *VaultService) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithEventBuffer sets the capacity of the change-event channel.
func WithEventBuffer(n int) Option {
	return func(s *VaultService) {
		if n >= 0 {
			s.events = make(chan Event, n)
		}
	}
}

// NewVaultService constructs a VaultService. keys and store must be non-nil.
func NewVaultService(keys KeyManager, store RecordStore, opts ...Option) *VaultService {
	s := &VaultService{
		keys:   keys,
		store:  store,
		log:    zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
		maxAge: DefaultMaxSecretAge,
		events: make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads both collections and repairs dangling category references.
// It must run once before any other call.
func (s *VaultService) Open(ctx context.Context) error {
	if err := s.store.LoadAll(ctx); err != nil {
		return mapStoreErr(err)
	}
	repaired, err := s.store.MigrateDanglingCategoryReferences(ctx)
	if err != nil {
		return mapStoreErr(err)
	}
	if repaired > 0 {
		s.emit(Event{Kind: CategoriesMigrated})
	}
	return nil
}

// HasMasterSecret reports whether the vault has been set up.
func (s *VaultService) HasMasterSecret() (bool, error) {
	return s.keys.HasMasterSecret()
}

// SetupMasterSecret initializes the vault with its first master secret.
func (s *VaultService) SetupMasterSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("%w: master secret is empty", ErrInvalidInput)
	}
	if err := s.keys.SetupMasterSecret(secret); err != nil {
		return err
	}
	s.log.Info("vault initialized")
	return nil
}

// VerifyMasterSecret checks secret against the stored verifier.
func (s *VaultService) VerifyMasterSecret(secret string) (bool, error) {
	return s.keys.VerifyMasterSecret(secret)
}

// ChangeMasterSecret rotates the master secret. Stored credentials are not
// touched: the data-encryption key does not change.
func (s *VaultService) ChangeMasterSecret(oldSecret, newSecret string) error {
	if newSecret == "" {
		return fmt.Errorf("%w: master secret is empty", ErrInvalidInput)
	}
	if err := s.keys.RotateMasterSecret(oldSecret, newSecret); err != nil {
		return err
	}
	s.log.Info("master secret changed")
	s.emit(Event{Kind: MasterSecretChanged})
	return nil
}

// Wipe irreversibly destroys the key material and both store files.
func (s *VaultService) Wipe(ctx context.Context) error {
	if err := s.keys.Wipe(); err != nil {
		return fmt.Errorf("wipe keys: %w", err)
	}
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("wipe store: %w", mapStoreErr(err))
	}
	s.log.Warn("vault wiped")
	s.emit(Event{Kind: Wiped})
	return nil
}

// CreateCredential seals the secret and stores a new credential.
func (s *VaultService) CreateCredential(ctx context.Context, in NewCredential) (models.Credential, error) {
	if strings.TrimSpace(in.Title) == "" {
		return models.Credential{}, fmt.Errorf("%w: title is empty", ErrInvalidInput)
	}
	sealed, err := s.seal(in.Secret)
	if err != nil {
		return models.Credential{}, err
	}

	now := s.now().UTC()
	rec := models.Credential{
		ID:               s.newID(),
		Title:            in.Title,
		Username:         in.Username,
		SecretCiphertext: sealed,
		CategoryID:       in.CategoryID,
		StrengthScore:    crypto.ScorePasswordStrength(in.Secret),
		Favorite:         in.Favorite,
		Notes:            in.Notes,
		Website:          in.Website,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if rec.CategoryID == "" {
		rec.CategoryID = models.UncategorizedID
	}

	stored, err := s.store.Upsert(ctx, rec)
	if err != nil {
		return models.Credential{}, mapStoreErr(err)
	}
	s.log.Debug("credential created", zap.String("id", stored.ID), zap.Int("strength", stored.StrengthScore))
	s.emit(Event{Kind: CredentialCreated, ID: stored.ID})
	return stored, nil
}

// UpdateCredential applies patch to the credential with the given id and,
// when newSecret is non-nil, re-seals and re-scores the secret. The patch is
// applied to the record as stored at commit time.
func (s *VaultService) UpdateCredential(ctx context.Context, id string, patch CredentialPatch, newSecret *string) (models.Credential, error) {
	if _, ok := s.store.Credential(id); !ok {
		return models.Credential{}, ErrNotFound
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return models.Credential{}, fmt.Errorf("%w: title is empty", ErrInvalidInput)
	}

	var (
		sealed []byte
		score  int
	)
	if newSecret != nil {
		var err error
		if sealed, err = s.seal(*newSecret); err != nil {
			return models.Credential{}, err
		}
		score = crypto.ScorePasswordStrength(*newSecret)
	}

	stored, err := s.store.Update(ctx, id, func(rec *models.Credential) error {
		patch.apply(rec)
		if sealed != nil {
			rec.SecretCiphertext = sealed
			rec.StrengthScore = score
		}
		return nil
	})
	if err != nil {
		return models.Credential{}, mapStoreErr(err)
	}
	s.emit(Event{Kind: CredentialUpdated, ID: id})
	return stored, nil
}

func (p CredentialPatch) apply(rec *models.Credential) {
	if p.Title != nil {
		rec.Title = *p.Title
	}
	if p.Username != nil {
		rec.Username = *p.Username
	}
	if p.CategoryID != nil {
		rec.CategoryID = *p.CategoryID
		if rec.CategoryID == "" {
			rec.CategoryID = models.UncategorizedID
		}
	}
	if p.Favorite != nil {
		rec.Favorite = *p.Favorite
	}
	switch {
	case p.ClearWebsite:
		rec.Website = nil
	case p.Website != nil:
		w := *p.Website
		rec.Website = &w
	}
	switch {
	case p.ClearNotes:
		rec.Notes = nil
	case p.Notes != nil:
		n := *p.Notes
		rec.Notes = &n
	}
}

// RevealSecret opens and returns the plaintext secret. Callers must drop the
// returned value as soon as it has been used.
func (s *VaultService) RevealSecret(ctx context.Context, id string) (string, error) {
	rec, ok := s.store.Credential(id)
	if !ok {
		return "", ErrNotFound
	}
	pt, err := s.open(rec)
	if err != nil {
		return "", err
	}
	defer crypto.Zero(pt)
	return string(pt), nil
}

// DeleteCredential removes the credential with the given id.
func (s *VaultService) DeleteCredential(ctx context.Context, id string) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return mapStoreErr(err)
	}
	s.emit(Event{Kind: CredentialDeleted, ID: id})
	return nil
}

// ToggleFavorite flips the favorite flag and returns the updated credential.
func (s *VaultService) ToggleFavorite(ctx context.Context, id string) (models.Credential, error) {
	stored, err := s.store.Update(ctx, id, func(rec *models.Credential) error {
		rec.Favorite = !rec.Favorite
		return nil
	})
	if err != nil {
		return models.Credential{}, mapStoreErr(err)
	}
	s.emit(Event{Kind: CredentialUpdated, ID: id})
	return stored, nil
}

// RecordUsage stamps the credential as used now.
func (s *VaultService) RecordUsage(ctx context.Context, id string) (models.Credential, error) {
	now := s.now().UTC()
	stored, err := s.store.Update(ctx, id, func(rec *models.Credential) error {
		rec.LastUsedAt = &now
		return nil
	})
	if err != nil {
		return models.Credential{}, mapStoreErr(err)
	}
	s.emit(Event{Kind: CredentialUsed, ID: id})
	return stored, nil
}

func (s *VaultService) seal(secret string) ([]byte, error) {
	key, err := s.keys.DataEncryptionKey()
	if err != nil {
		return nil, fmt.Errorf("data key: %w", err)
	}
	defer key.Destroy()

	pt := []byte(secret)
	defer crypto.Zero(pt)
	return crypto.Seal(pt, key)
}

func (s *VaultService) open(rec models.Credential) ([]byte, error) {
	key, err := s.keys.DataEncryptionKey()
	if err != nil {
		return nil, fmt.Errorf("data key: %w", err)
	}
	defer key.Destroy()

	pt, err := crypto.Open(rec.SecretCiphertext, key)
	if err != nil {
		s.log.Warn("secret failed authentication", zap.String("id", rec.ID), zap.Int("bytes", len(rec.SecretCiphertext)))
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return pt, nil
}

// mapStoreErr translates store errors that have a vault-level meaning.
func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrBusy):
		return fmt.Errorf("%w: %w", ErrBusy, err)
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	default:
		return err
	}
}
