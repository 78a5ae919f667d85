// Package storage persists credentials and categories in an application
// directory and keeps the authoritative in-memory copy of both.
//
// Credentials are written as one sealed blob (credentials.enc); categories are
// not sensitive and live in plaintext JSON (categories.json). Every write goes
// to a temporary file that is renamed over the live file, so an interrupted
// write never damages the previously committed version.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/atinyakov/passvault/internal/crypto"
	"github.com/atinyakov/passvault/internal/keyvault"
	"github.com/atinyakov/passvault/internal/models"
)

const (
	// CredentialsFile holds the sealed credential collection.
	CredentialsFile = "credentials.enc"
	// CategoriesFile holds the plaintext category collection.
	CategoriesFile = "categories.json"

	tmpSuffix   = ".tmp"
	fileVersion = 1
)

var (
	// ErrCorruptedStore indicates the credentials file could not be
	// authenticated or decoded. It is not recoverable automatically.
	ErrCorruptedStore = errors.New("storage: store is corrupted")
	// ErrIO indicates a filesystem failure; the previous state is kept.
	ErrIO = errors.New("storage: i/o failure")
	// ErrBusy indicates another mutation holds the store.
	ErrBusy = errors.New("storage: busy")
	// ErrNotFound indicates the record does not exist.
	ErrNotFound = errors.New("storage: record not found")
)

// State is the load state of a collection.
type State int

const (
	Unloaded State = iota
	Empty
	Loaded
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Loaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// KeyProvider hands out the data-encryption key.
type KeyProvider interface {
	DataEncryptionKey() (crypto.Key, error)
}

// Options configures a Store.
type Options struct {
	// Dir is the application-private directory holding both files.
	Dir string
	// FS defaults to OSFileSystem.
	FS FileSystem
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// FailFast makes a mutation return ErrBusy instead of waiting while
	// another mutation is in flight.
	FailFast bool
	// Now defaults to time.Now.
	Now func() time.Time
}

type credentialFile struct {
	Version     int                 `cbor:"1,keyasint"`
	Credentials []models.Credential `cbor:"2,keyasint"`
}

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// Store is the encrypted record store.
type Store struct {
	dir      string
	fs       FileSystem
	keys     KeyProvider
	log      *zap.Logger
	now      func() time.Time
	failFast bool

	// sem admits one mutation at a time.
	sem *semaphore.Weighted

	mu          sync.RWMutex
	credentials []models.Credential
	categories  []models.Category
	credState   State
	catState    State
}

// New constructs a Store. Nothing is read until LoadAll.
func New(keys KeyProvider, opts Options) *Store {
	s := &Store{
		dir:      opts.Dir,
		fs:       opts.FS,
		keys:     keys,
		log:      opts.Logger,
		now:      opts.Now,
		failFast: opts.FailFast,
		sem:      semaphore.NewWeighted(1),
	}
	if s.fs == nil {
		s.fs = OSFileSystem{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Store) credentialsPath() string { return filepath.Join(s.dir, CredentialsFile) }
func (s *Store) categoriesPath() string  { return filepath.Join(s.dir, CategoriesFile) }

func (s *Store) timestamp() time.Time { return s.now().UTC() }

func (s *Store) acquire(ctx context.Context) error {
	if s.failFast {
		if !s.sem.TryAcquire(1) {
			return ErrBusy
		}
		return nil
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return nil
}

func (s *Store) release() { s.sem.Release(1) }

// LoadAll reads both collections from disk. A missing credentials file, or a
// missing DEK (first run), yields an empty collection. A credentials file that
// fails to authenticate or decode yields ErrCorruptedStore and leaves the
// cache untouched.
func (s *Store) LoadAll(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if err := s.fs.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("%w: create dir: %v", ErrIO, err)
	}
	s.sweepTempFiles()

	cats, catState, err := s.loadCategories()
	if err != nil {
		return err
	}
	creds, credState, err := s.loadCredentials()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.categories, s.catState = cats, catState
	s.credentials, s.credState = creds, credState
	s.mu.Unlock()

	s.log.Info("store loaded",
		zap.Int("credentials", len(creds)),
		zap.Int("categories", len(cats)),
		zap.Stringer("credentials_state", credState),
	)
	return nil
}

// sweepTempFiles removes temp files left by an interrupted write. The live
// files are never touched.
func (s *Store) sweepTempFiles() {
	matches, err := s.fs.Glob(filepath.Join(s.dir, "*"+tmpSuffix))
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := s.fs.Remove(m); err != nil {
			s.log.Warn("failed to remove orphaned temp file", zap.String("path", m), zap.Error(err))
			continue
		}
		s.log.Warn("removed orphaned temp file", zap.String("path", m))
	}
}

func (s *Store) loadCategories() ([]models.Category, State, error) {
	data, err := s.fs.ReadFile(s.categoriesPath())
	if errors.Is(err, fs.ErrNotExist) {
		return models.BuiltInCategories(), Empty, nil
	}
	if err != nil {
		return nil, Unloaded, fmt.Errorf("%w: read categories: %v", ErrIO, err)
	}
	var cats []models.Category
	if err := json.Unmarshal(data, &cats); err != nil {
		s.log.Error("categories file unreadable", zap.Error(err))
		return nil, Unloaded, fmt.Errorf("%w: categories: %v", ErrCorruptedStore, err)
	}
	return withBuiltIns(cats), Loaded, nil
}

// withBuiltIns re-adds any built-in category missing from cats and restores
// the canonical definition of those present.
func withBuiltIns(cats []models.Category) []models.Category {
	builtIn := make(map[string]models.Category)
	for _, c := range models.BuiltInCategories() {
		builtIn[c.ID] = c
	}
	out := make([]models.Category, 0, len(cats)+len(builtIn))
	for _, c := range cats {
		if b, ok := builtIn[c.ID]; ok {
			out = append(out, b)
			delete(builtIn, c.ID)
			continue
		}
		c.IsBuiltIn = false
		out = append(out, c)
	}
	for _, b := range models.BuiltInCategories() {
		if _, missing := builtIn[b.ID]; missing {
			out = append(out, b)
		}
	}
	sortCategories(out)
	return out
}

func sortCategories(cats []models.Category) {
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].SortOrder != cats[j].SortOrder {
			return cats[i].SortOrder < cats[j].SortOrder
		}
		return strings.ToLower(cats[i].Name) < strings.ToLower(cats[j].Name)
	})
}

func (s *Store) loadCredentials() ([]models.Credential, State, error) {
	sealed, err := s.fs.ReadFile(s.credentialsPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, Empty, nil
	}
	if err != nil {
		return nil, Unloaded, fmt.Errorf("%w: read credentials: %v", ErrIO, err)
	}

	key, err := s.keys.DataEncryptionKey()
	if errors.Is(err, keyvault.ErrKeyNotFound) {
		s.log.Warn("credentials file present but no data key; starting empty")
		return nil, Empty, nil
	}
	if err != nil {
		return nil, Unloaded, err
	}
	defer key.Destroy()

	payload, err := crypto.Open(sealed, key)
	if err != nil {
		s.log.Error("credentials file failed authentication", zap.Int("bytes", len(sealed)))
		return nil, Unloaded, ErrCorruptedStore
	}
	defer crypto.Zero(payload)

	var file credentialFile
	if err := cbor.Unmarshal(payload, &file); err != nil {
		s.log.Error("credentials payload undecodable", zap.Error(err))
		return nil, Unloaded, fmt.Errorf("%w: decode: %v", ErrCorruptedStore, err)
	}
	if file.Version != fileVersion {
		return nil, Unloaded, fmt.Errorf("%w: unsupported version %d", ErrCorruptedStore, file.Version)
	}
	return file.Credentials, Loaded, nil
}

// SaveAll replaces the whole credential collection. The cache is swapped only
// after the new file is committed.
func (s *Store) SaveAll(ctx context.Context, records []models.Credential) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	next := cloneCredentials(records)
	if err := s.persistCredentials(next); err != nil {
		return err
	}
	s.commitCredentials(next)
	return nil
}

// Upsert replaces the record with the same ID, keeping its ID and CreatedAt,
// or appends it. UpdatedAt is always set to now. The stored record is
// returned.
func (s *Store) Upsert(ctx context.Context, rec models.Credential) (models.Credential, error) {
	if err := s.acquire(ctx); err != nil {
		return models.Credential{}, err
	}
	defer s.release()

	now := s.timestamp()
	next := s.snapshotCredentials()
	rec = rec.Clone()
	rec.UpdatedAt = now

	replaced := false
	for i := range next {
		if next[i].ID == rec.ID {
			rec.CreatedAt = next[i].CreatedAt
			next[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		next = append(next, rec)
	}

	if err := s.persistCredentials(next); err != nil {
		return models.Credential{}, err
	}
	s.commitCredentials(next)
	return rec.Clone(), nil
}

// Update runs fn on the current copy of the credential with the given id and
// persists the result while holding the mutation lock, so a concurrent Remove
// either lands before (ErrNotFound) or after the update, never in between.
// ID and CreatedAt survive fn unchanged. An error from fn aborts the update
// and is returned as is.
func (s *Store) Update(ctx context.Context, id string, fn func(*models.Credential) error) (models.Credential, error) {
	if err := s.acquire(ctx); err != nil {
		return models.Credential{}, err
	}
	defer s.release()

	next := s.snapshotCredentials()
	idx := -1
	for i := range next {
		if next[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.Credential{}, ErrNotFound
	}

	rec := next[idx].Clone()
	if err := fn(&rec); err != nil {
		return models.Credential{}, err
	}
	rec.ID = next[idx].ID
	rec.CreatedAt = next[idx].CreatedAt
	rec.UpdatedAt = s.timestamp()
	next[idx] = rec

	if err := s.persistCredentials(next); err != nil {
		return models.Credential{}, err
	}
	s.commitCredentials(next)
	return rec.Clone(), nil
}

// Remove deletes the credential with the given id.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	current := s.snapshotCredentials()
	next := current[:0:0]
	for _, c := range current {
		if c.ID != id {
			next = append(next, c)
		}
	}
	if len(next) == len(current) {
		return ErrNotFound
	}
	if err := s.persistCredentials(next); err != nil {
		return err
	}
	s.commitCredentials(next)
	return nil
}

// MigrateDanglingCategoryReferences points every credential whose category no
// longer exists at the uncategorized category and persists the result if
// anything changed. It returns the number of repaired credentials.
func (s *Store) MigrateDanglingCategoryReferences(ctx context.Context) (int, error) {
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.release()

	s.mu.RLock()
	known := make(map[string]struct{}, len(s.categories))
	for _, c := range s.categories {
		known[c.ID] = struct{}{}
	}
	s.mu.RUnlock()
	known[models.UncategorizedID] = struct{}{}

	next := s.snapshotCredentials()
	changed := 0
	for i := range next {
		if _, ok := known[next[i].CategoryID]; !ok {
			s.log.Debug("repairing dangling category reference",
				zap.String("credential", next[i].ID),
				zap.String("category", next[i].CategoryID),
			)
			next[i].CategoryID = models.UncategorizedID
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	if err := s.persistCredentials(next); err != nil {
		return 0, err
	}
	s.commitCredentials(next)
	s.log.Info("migrated dangling category references", zap.Int("repaired", changed))
	return changed, nil
}

// UpsertCategory adds or replaces a custom category. Built-in categories are
// fixed and cannot be replaced.
func (s *Store) UpsertCategory(ctx context.Context, cat models.Category) (models.Category, error) {
	if err := s.acquire(ctx); err != nil {
		return models.Category{}, err
	}
	defer s.release()

	cat.IsBuiltIn = false
	next := s.snapshotCategories()
	replaced := false
	for i := range next {
		if next[i].ID == cat.ID {
			next[i] = cat
			replaced = true
			break
		}
	}
	if !replaced {
		next = append(next, cat)
	}
	sortCategories(next)

	if err := s.persistCategories(next); err != nil {
		return models.Category{}, err
	}
	s.mu.Lock()
	s.categories, s.catState = next, Loaded
	s.mu.Unlock()
	return cat, nil
}

// RemoveCategory deletes a category. Credentials that referenced it keep the
// dangling id until MigrateDanglingCategoryReferences runs.
func (s *Store) RemoveCategory(ctx context.Context, id string) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	current := s.snapshotCategories()
	next := current[:0:0]
	for _, c := range current {
		if c.ID != id {
			next = append(next, c)
		}
	}
	if len(next) == len(current) {
		return ErrNotFound
	}
	if err := s.persistCategories(next); err != nil {
		return err
	}
	s.mu.Lock()
	s.categories, s.catState = next, Loaded
	s.mu.Unlock()
	return nil
}

// Reset deletes both files and returns the cache to its first-run state.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	for _, p := range []string{s.credentialsPath(), s.categoriesPath()} {
		if err := s.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: remove %s: %v", ErrIO, filepath.Base(p), err)
		}
	}
	s.mu.Lock()
	s.credentials, s.credState = nil, Empty
	s.categories, s.catState = models.BuiltInCategories(), Empty
	s.mu.Unlock()
	s.log.Info("store reset")
	return nil
}

func (s *Store) persistCredentials(records []models.Credential) error {
	key, err := s.keys.DataEncryptionKey()
	if err != nil {
		return fmt.Errorf("data key: %w", err)
	}
	defer key.Destroy()

	payload, err := encMode.Marshal(credentialFile{Version: fileVersion, Credentials: records})
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	defer crypto.Zero(payload)

	sealed, err := crypto.Seal(payload, key)
	if err != nil {
		return fmt.Errorf("seal credentials: %w", err)
	}
	if err := s.writeAtomic(s.credentialsPath(), sealed); err != nil {
		return err
	}
	s.log.Debug("credentials saved", zap.Int("count", len(records)))
	return nil
}

func (s *Store) persistCategories(cats []models.Category) error {
	data, err := json.MarshalIndent(cats, "", "  ")
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	return s.writeAtomic(s.categoriesPath(), data)
}

// writeAtomic writes data next to path and renames it into place.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp := path + tmpSuffix
	if err := s.fs.WriteFile(tmp, data, 0o600); err != nil {
		_ = s.fs.Remove(tmp)
		s.log.Error("write failed", zap.String("path", tmp), zap.Error(err))
		return fmt.Errorf("%w: write %s: %v", ErrIO, filepath.Base(tmp), err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		s.log.Error("rename failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: rename %s: %v", ErrIO, filepath.Base(path), err)
	}
	return nil
}

func (s *Store) commitCredentials(next []models.Credential) {
	s.mu.Lock()
	s.credentials, s.credState = next, Loaded
	s.mu.Unlock()
}

func (s *Store) snapshotCredentials() []models.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCredentials(s.credentials)
}

func (s *Store) snapshotCategories() []models.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Category(nil), s.categories...)
}

func cloneCredentials(in []models.Credential) []models.Credential {
	out := make([]models.Credential, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

// Credentials returns a copy of every cached credential.
func (s *Store) Credentials() []models.Credential {
	return s.snapshotCredentials()
}

// Credential returns a copy of the credential with the given id.
func (s *Store) Credential(id string) (models.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.credentials {
		if c.ID == id {
			return c.Clone(), true
		}
	}
	return models.Credential{}, false
}

// Categories returns the categories ordered by SortOrder, then name.
func (s *Store) Categories() []models.Category {
	return s.snapshotCategories()
}

// Category returns the category with the given id.
func (s *Store) Category(id string) (models.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return models.Category{}, false
}

// States reports the load state of the credential and category collections.
func (s *Store) States() (credentials, categories State) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credState, s.catState
}
