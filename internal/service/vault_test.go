package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/passvault/internal/crypto"
	"github.com/atinyakov/passvault/internal/keyvault"
	"github.com/atinyakov/passvault/internal/models"
	"github.com/atinyakov/passvault/internal/repository"
	"github.com/atinyakov/passvault/internal/service"
	"github.com/atinyakov/passvault/internal/storage"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc   *service.VaultService
	kv    *keyvault.KeyVault
	store *storage.Store
	clk   *clock
	dir   string
}

func newFixture(t *testing.T, opts ...service.Option) *fixture {
	t.Helper()
	clk := &clock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}
	dir := t.TempDir()
	kv := keyvault.New(repository.NewMemoryKeyStore(), keyvault.WithIterations(1000))
	st := storage.New(kv, storage.Options{Dir: dir, Now: clk.Now})
	opts = append([]service.Option{service.WithClock(clk.Now)}, opts...)
	svc := service.NewVaultService(kv, st, opts...)
	require.NoError(t, svc.Open(context.Background()))
	return &fixture{svc: svc, kv: kv, store: st, clk: clk, dir: dir}
}

func (f *fixture) setup(t *testing.T) *fixture {
	t.Helper()
	require.NoError(t, f.svc.SetupMasterSecret("CorrectHorse9!"))
	return f
}

func strPtr(s string) *string { return &s }

func storageFile(dir string) string { return filepath.Join(dir, storage.CredentialsFile) }

func readFile(dir string) ([]byte, error) { return os.ReadFile(storageFile(dir)) }

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t).setup(t)
	ctx := context.Background()

	created, err := f.svc.CreateCredential(ctx, service.NewCredential{
		Title:      "GitHub",
		Username:   "me@example.com",
		Secret:     "Sup3rSecret!",
		CategoryID: models.DevToolsID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.GreaterOrEqual(t, created.StrengthScore, 60)
	assert.NotContains(t, string(created.SecretCiphertext), "Sup3rSecret!")

	secret, err := f.svc.RevealSecret(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sup3rSecret!", secret)

	f.clk.Advance(time.Minute)
	updated, err := f.svc.UpdateCredential(ctx, created.ID, service.CredentialPatch{}, strPtr("Sup3rSecret!!"))
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt), "updatedAt not bumped")
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, crypto.ScorePasswordStrength("Sup3rSecret!!"), updated.StrengthScore)
	assert.NotEqual(t, created.SecretCiphertext, updated.SecretCiphertext)

	secret, err = f.svc.RevealSecret(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sup3rSecret!!", secret)

	require.NoError(t, f.svc.DeleteCredential(ctx, created.ID))
	_, err = f.svc.RevealSecret(ctx, created.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestUpdateRescoresSecret(t *testing.T) {
	f := newFixture(t).setup(t)
	ctx := context.Background()

	c, err := f.svc.CreateCredential(ctx, service.NewCredential{Title: "Mail", Secret: "password"})
	require.NoError(t, err)
	assert.Equal(t, models.UncategorizedID, c.CategoryID)

	c, err = f.svc.UpdateCredential(ctx, c.ID, service.CredentialPatch{}, strPtr("Sup3rSecret!"))
	require.NoError(t, err)
	assert.Equal(t, 80, c.StrengthScore)
}

func TestRotationKeepsSecretsReadable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.SetupMasterSecret("A"))

	c, err := f.svc.CreateCredential(ctx, service.NewCredential{Title: "Bank", Secret: "S"})
	require.NoError(t, err)
	before, err := readFile(f.dir)
	require.NoError(t, err)

	require.NoError(t, f.svc.ChangeMasterSecret("A", "B"))

	after, err := readFile(f.dir)
	require.NoError(t, err)
	assert.Equal(t, before, after, "rotation must not rewrite the store")

	secret, err := f.svc.RevealSecret(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "S", secret)

	okA, err := f.svc.VerifyMasterSecret("A")
	require.NoError(t, err)
	okB, err := f.svc.VerifyMasterSecret("B")
	require.NoError(t, err)
	assert.False(t, okA)
	assert.True(t, okB)

	assert.ErrorIs(t, f.svc.ChangeMasterSecret("A", "C"), keyvault.ErrInvalidCredential)
}

func TestSecretsSurviveReopen(t *testing.T) {
	f := newFixture(t).setup(t)
	ctx := context.Background()
	c, err := f.svc.CreateCredential(ctx, service.NewCredential{Title: "VPN", Secret: "tunnel-Pa55"})
	require.NoError(t, err)

	st := storage.New(f.kv, storage.Options{Dir: f.dir})
	reopened := service.NewVaultService(f.kv, st)
	require.NoError(t, reopened.Open(ctx))

	secret, err := reopened.RevealSecret(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "tunnel-Pa55", secret)
}

func TestCreateBeforeSetup(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateCredential(context.Background(), service.NewCredential{Title: "x", Secret: "y"})
	assert.ErrorIs(t, err, keyvault.ErrKeyNotFound)
	assert.Empty(t, f.svc.ListCredentials(service.Filter{}))
}

func TestInvalidInput(t *testing.T) {
	f := newFixture(t).setup(t)
	ctx := context.Background()

	_, err := f.svc.CreateCredential(ctx, service.NewCredential{Title: "  ", Secret: "y"})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	c, err := f.svc.CreateCredential(ctx, service.NewCredential{Title: "ok", Secret: "y"})
	require.NoError(t, err)
	_, err = f.svc.UpdateCredential(ctx, c.ID, service.CredentialPatch{Title: strPtr("")}, nil)
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	assert.ErrorIs(t, f.svc.ChangeMasterSecret("CorrectHorse9!", ""), service.ErrInvalidInput)
	assert.ErrorIs(t, newFixture(t).svc.SetupMasterSecret(""), service.ErrInvalidInput)
}

func TestRevealTamperedSecret(t *testing.T) {
	f := newFixture(t).setup(t)
	ctx := context.Background()
	c, err := f.svc.CreateCredential(ctx, service.NewCredential{Title: "x", Secret: "y"})
	require.NoError(t, err)

	c.SecretCiphertext[len(c.SecretCiphertext)-1] ^= 0x80
	_, err = f.store.Upsert(ctx, c)
	require.NoError(t, err)

	_, err = f.svc.RevealSecret(ctx, c.ID)
	assert.ErrorIs(t, err, service.ErrDecryptionFailed)
}

func TestUpdatePatchFields(t *testing.T) {
	f := newFixture(t).setup(t)
	ctx := context.Background()
	c, err := f.svc.CreateCredential(ctx, service.NewCredential{
		Title:    "Shop",
		Username: "old",
		Secret:   "Secret12!",
		Website:  strPtr("https://shop.example"),
		Notes:    strPtr("n"),
	})
	require.NoError(t, err)

	fav := true
	c2, err := f.svc.UpdateCredential(ctx, c.ID, service.CredentialPatch{
		Username:     strPtr("new"),
		CategoryID:   strPtr(models.ShoppingID),
		Favorite:     &fav,
		ClearWebsite: true,
		Notes:        strPtr("changed"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Shop", c2.Title)
	assert.Equal(t, "new", c2.Username)
	assert.Equal(t, models.ShoppingID, c2.CategoryID)
	assert.True(t, c2.Favorite)
	assert.Nil(t, c2.Website)
	require.NotNil(t, c2.Notes)
	assert.Equal(t, "changed", *c2.Notes)
	assert.Equal(t, c.SecretCiphertext, c2.SecretCiphertext, "secret untouched without a new one")
	assert.Equal(t, c.StrengthScore, c2.StrengthScore)

	_, err = f.svc.UpdateCredential(ctx, "missing", service.CredentialPatch{}, nil)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestToggleFavoriteAndRecordUsage(t *testing.T) {
	f := newFixture(t).setup(t)
	ctx := context.Background()
	a, err := f.svc.CreateCredential(ctx, service.NewCredential{Title: "a", Secret: "1"})
	require.NoError(t, err)
	b, err := f.svc.CreateCredential(ctx, service.NewCredential{Title: "b", Secret: "2"})
	require.NoError(t, err)

	a, err = f.svc.ToggleFavorite(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, a.Favorite)
	assert.Len(t, f.svc.ListCredentials(service.Filter{FavoritesOnly: true}), 1)

	_, err = f.svc.RecordUsage(ctx, a.ID)
	require.NoError(t, err)
	f.clk.Advance(time.Second)
	b, err = f.svc.RecordUsage(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, b.LastUsedAt)
	assert.Equal(t, f.clk.Now(), *b.LastUsedAt)

	recent := f.svc.RecentlyUsed(5)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].Title)
	assert.Len(t, f.svc.RecentlyUsed(1), 1)

	_, err = f.svc.ToggleFavorite(ctx, "missing")
	assert.ErrorIs(t, err, service.ErrNotFound)
	_, err = f.svc.RecordUsage(ctx, "missing")
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteCredential(ctx, "missing"), service.ErrNotFound)
}

func TestListCredentials(t *testing.T) {
	f := newFixture(t).setup(t)
	ctx := context.Background()
	mk := func(title, user, secret, category string, website *string) models.Credential {
		f.clk.Advance(time.Minute)
		c, err := f.svc.CreateCredential(ctx, service.NewCredential{
			Title: title, Username: user, Secret: secret, CategoryID: category, Website: website,
		})
		require.NoError(t, err)
		return c
	}
	mk("zeta", "z@example.com", "Sup3rSecret!", models.WorkID, nil)
	mk("Alpha", "root", "abc", models.DevToolsID, strPtr("https://git.example"))
	mk("mail", "alpha@example.com", "xkqmzvbt", models.EmailID, nil)

	titles := func(list []models.Credential) []string {
		out := make([]string, len(list))
		for i, c := range list {
			out[i] = c.Title
		}
		return out
	}

	tests := []struct {
		name   string
		filter service.Filter
		want   []string
	}{
		{"all by title", service.Filter{}, []string{"Alpha", "mail", "zeta"}},
		{"by updated", service.Filter{Sort: service.SortByUpdated}, []string{"mail", "Alpha", "zeta"}},
		{"by strength", service.Filter{Sort: service.SortByStrength}, []string{"Alpha", "mail", "zeta"}},
		{"category", service.Filter{CategoryID: models.WorkID}, []string{"zeta"}},
		{"query title and username", service.Filter{Query: "ALPHA"}, []string{"Alpha", "mail"}},
		{"query website", service.Filter{Query: "git.example"}, []string{"Alpha"}},
		{"no match", service.Filter{Query: "nothing"}, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, titles(f.svc.ListCredentials(tc.filter)))
		})
	}
}

func TestSecurityReport(t *testing.T) {
	f := newFixture(t, service.WithMaxSecretAge(30*24*time.Hour)).setup(t)
	ctx := context.Background()

	old, err := f.svc.CreateCredential(ctx, service.NewCredential{Title: "Old forum", Secret: "Sup3rSecret!"})
	require.NoError(t, err)
	f.clk.Advance(45 * 24 * time.Hour)

	_, err = f.svc.CreateCredential(ctx, service.NewCredential{Title: "Bank", Secret: "Sup3rSecret!"})
	require.NoError(t, err)
	_, err = f.svc.CreateCredential(ctx, service.NewCredential{Title: "Wifi", Secret: "password"})
	require.NoError(t, err)
	_, err = f.svc.CreateCredential(ctx, service.NewCredential{Title: "Cloud", Secret: "Kp!v321w"})
	require.NoError(t, err)

	report, err := f.svc.BuildSecurityReport(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Total)
	require.Len(t, report.Weak, 1)
	assert.Equal(t, "Wifi", report.Weak[0].Title)
	require.Len(t, report.Old, 1)
	assert.Equal(t, old.ID, report.Old[0].ID)

	require.Len(t, report.Reused, 1)
	require.Len(t, report.Reused[0], 2)
	assert.Equal(t, "Bank", report.Reused[0][0].Title)
	assert.Equal(t, "Old forum", report.Reused[0][1].Title)

	assert.InDelta(t, (80+80+5+60)/4.0, report.AverageScore, 0.001)
	assert.Equal(t, 2, report.TierCounts[models.VeryStrong])
	assert.Equal(t, 1, report.TierCounts[models.Strong])
	assert.Equal(t, 1, report.TierCounts[models.VeryWeak])
	assert.Equal(t, f.clk.Now(), report.GeneratedAt)
}

func TestSecurityReportSurvivesTamperedSecret(t *testing.T) {
	f := newFixture(t).setup(t)
	ctx := context.Background()

	broken, err := f.svc.CreateCredential(ctx, service.NewCredential{Title: "Broken", Secret: "password"})
	require.NoError(t, err)
	_, err = f.svc.CreateCredential(ctx, service.NewCredential{Title: "Bank", Secret: "Same-Secret1"})
	require.NoError(t, err)
	_, err = f.svc.CreateCredential(ctx, service.NewCredential{Title: "Forum", Secret: "Same-Secret1"})
	require.NoError(t, err)

	broken.SecretCiphertext[0] ^= 0xFF
	_, err = f.store.Upsert(ctx, broken)
	require.NoError(t, err)

	report, err := f.svc.BuildSecurityReport(ctx)
	require.NoError(t, err)
	require.Len(t, report.Undecryptable, 1)
	assert.Equal(t, broken.ID, report.Undecryptable[0].ID)
	require.Len(t, report.Weak, 1, "weak detection needs no decryption")
	assert.Equal(t, broken.ID, report.Weak[0].ID)
	require.Len(t, report.Reused, 1)
	assert.Len(t, report.Reused[0], 2)
}

func TestSecurityReportEmptyVault(t *testing.T) {
	f := newFixture(t)
	report, err := f.svc.BuildSecurityReport(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Zero(t, report.AverageScore)
	assert.Empty(t, report.Reused)
}

func TestCategories(t *testing.T) {
	f := newFixture(t).setup(t)
	ctx := context.Background()

	cat, err := f.svc.AddCategory(ctx, "Gaming", "gamecontroller", "#00FF00")
	require.NoError(t, err)
	assert.False(t, cat.IsBuiltIn)
	cats := f.svc.ListCategories()
	assert.Equal(t, cat.ID, cats[len(cats)-1].ID)

	c, err := f.svc.CreateCredential(ctx, service.NewCredential{Title: "Steam", Secret: "x", CategoryID: cat.ID})
	require.NoError(t, err)
	assert.Equal(t, "Gaming", f.svc.ResolveCategory(c.CategoryID).Name)

	assert.ErrorIs(t, f.svc.RemoveCategory(ctx, models.FinanceID), service.ErrBuiltInCategory)
	require.NoError(t, f.svc.RemoveCategory(ctx, cat.ID))
	assert.ErrorIs(t, f.svc.RemoveCategory(ctx, cat.ID), service.ErrNotFound)
	assert.Equal(t, models.UncategorizedID, f.svc.ResolveCategory(c.CategoryID).ID)

	_, err = f.svc.AddCategory(ctx, " ", "", "")
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	// Reopening repairs the dangling reference on disk.
	st := storage.New(f.kv, storage.Options{Dir: f.dir})
	reopened := service.NewVaultService(f.kv, st)
	require.NoError(t, reopened.Open(ctx))
	got, err := reopened.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UncategorizedID, got.CategoryID)
}

func TestWipe(t *testing.T) {
	f := newFixture(t).setup(t)
	ctx := context.Background()
	_, err := f.svc.CreateCredential(ctx, service.NewCredential{Title: "x", Secret: "y"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Wipe(ctx))
	has, err := f.svc.HasMasterSecret()
	require.NoError(t, err)
	assert.False(t, has)
	assert.Empty(t, f.svc.ListCredentials(service.Filter{}))
	assert.NoFileExists(t, storageFile(f.dir))
}

func TestEvents(t *testing.T) {
	f := newFixture(t, service.WithEventBuffer(2)).setup(t)
	ctx := context.Background()

	c, err := f.svc.CreateCredential(ctx, service.NewCredential{Title: "x", Secret: "y"})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteCredential(ctx, c.ID))
	// buffer is full; this one is dropped rather than blocking
	_, err = f.svc.CreateCredential(ctx, service.NewCredential{Title: "z", Secret: "y"})
	require.NoError(t, err)

	assert.Equal(t, service.Event{Kind: service.CredentialCreated, ID: c.ID}, <-f.svc.Events())
	assert.Equal(t, service.Event{Kind: service.CredentialDeleted, ID: c.ID}, <-f.svc.Events())
	select {
	case e := <-f.svc.Events():
		t.Fatalf("unexpected event %v", e.Kind)
	default:
	}
}

// mockStore lets tests inject store failures.
type mockStore struct {
	service.RecordStore
	LoadAllFunc    func(ctx context.Context) error
	UpsertFunc     func(ctx context.Context, rec models.Credential) (models.Credential, error)
	UpdateFunc     func(ctx context.Context, id string, fn func(*models.Credential) error) (models.Credential, error)
	CredentialFunc func(id string) (models.Credential, bool)
}

func (m *mockStore) LoadAll(ctx context.Context) error { return m.LoadAllFunc(ctx) }
func (m *mockStore) Upsert(ctx context.Context, rec models.Credential) (models.Credential, error) {
	return m.UpsertFunc(ctx, rec)
}
func (m *mockStore) Update(ctx context.Context, id string, fn func(*models.Credential) error) (models.Credential, error) {
	return m.UpdateFunc(ctx, id, fn)
}
func (m *mockStore) Credential(id string) (models.Credential, bool) { return m.CredentialFunc(id) }

func TestStoreErrorsPropagate(t *testing.T) {
	kv := keyvault.New(repository.NewMemoryKeyStore(), keyvault.WithIterations(1000))
	require.NoError(t, kv.SetupMasterSecret("s"))

	t.Run("busy", func(t *testing.T) {
		store := &mockStore{
			UpsertFunc: func(context.Context, models.Credential) (models.Credential, error) {
				return models.Credential{}, storage.ErrBusy
			},
		}
		svc := service.NewVaultService(kv, store)
		_, err := svc.CreateCredential(context.Background(), service.NewCredential{Title: "x", Secret: "y"})
		assert.ErrorIs(t, err, service.ErrBusy)
		assert.ErrorIs(t, err, storage.ErrBusy)
	})

	t.Run("io", func(t *testing.T) {
		store := &mockStore{
			UpdateFunc: func(context.Context, string, func(*models.Credential) error) (models.Credential, error) {
				return models.Credential{}, storage.ErrIO
			},
		}
		svc := service.NewVaultService(kv, store)
		_, err := svc.ToggleFavorite(context.Background(), "a")
		assert.ErrorIs(t, err, storage.ErrIO)
	})

	t.Run("corrupted on open", func(t *testing.T) {
		store := &mockStore{
			LoadAllFunc: func(context.Context) error { return storage.ErrCorruptedStore },
		}
		svc := service.NewVaultService(kv, store)
		err := svc.Open(context.Background())
		assert.ErrorIs(t, err, storage.ErrCorruptedStore)
	})
}

type failingKeys struct {
	service.KeyManager
	err error
}

func (f failingKeys) Wipe() error { return f.err }

func TestWipeKeyFailureLeavesStore(t *testing.T) {
	wantErr := errors.New("keychain locked")
	resetCalled := false
	store := &resetStore{reset: func() { resetCalled = true }}
	svc := service.NewVaultService(failingKeys{err: wantErr}, store)

	err := svc.Wipe(context.Background())
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, resetCalled)
}

type resetStore struct {
	service.RecordStore
	reset func()
}

func (r *resetStore) Reset(context.Context) error {
	r.reset()
	return nil
}

// gatedKeys parks the first DataEncryptionKey call until release is closed.
type gatedKeys struct {
	service.KeyManager
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedKeys) DataEncryptionKey() (crypto.Key, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.KeyManager.DataEncryptionKey()
}

func TestDeleteDuringUpdateIsNotUndone(t *testing.T) {
	kv := keyvault.New(repository.NewMemoryKeyStore(), keyvault.WithIterations(1000))
	require.NoError(t, kv.SetupMasterSecret("s"))
	dir := t.TempDir()
	st := storage.New(kv, storage.Options{Dir: dir})
	keys := &gatedKeys{KeyManager: kv, entered: make(chan struct{}), release: make(chan struct{})}
	svc := service.NewVaultService(keys, st)
	ctx := context.Background()
	require.NoError(t, svc.Open(ctx))

	// Create through the ungated key vault so the gate trips inside the update.
	c, err := service.NewVaultService(kv, st).CreateCredential(ctx, service.NewCredential{Title: "Bank", Secret: "old"})
	require.NoError(t, err)

	type result struct {
		c   models.Credential
		err error
	}
	updated := make(chan result, 1)
	go func() {
		got, err := svc.UpdateCredential(ctx, c.ID, service.CredentialPatch{Title: strPtr("Bank 2")}, strPtr("new-Secret1"))
		updated <- result{got, err}
	}()
	<-keys.entered

	require.NoError(t, svc.DeleteCredential(ctx, c.ID))
	close(keys.release)

	res := <-updated
	assert.ErrorIs(t, res.err, service.ErrNotFound)
	_, err = svc.Get(c.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Empty(t, st.Credentials())

	reloaded := storage.New(kv, storage.Options{Dir: dir})
	require.NoError(t, reloaded.LoadAll(ctx))
	assert.Empty(t, reloaded.Credentials(), "deleted credential came back on disk")
}

func TestConcurrentTogglesAreNotLost(t *testing.T) {
	f := newFixture(t).setup(t)
	ctx := context.Background()
	c, err := f.svc.CreateCredential(ctx, service.NewCredential{Title: "x", Secret: "y"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ToggleFavorite(ctx, c.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.svc.Get(c.ID)
	require.NoError(t, err)
	assert.False(t, got.Favorite, "eight toggles must cancel out")
}
