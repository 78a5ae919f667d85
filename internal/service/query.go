package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/atinyakov/passvault/internal/models"
)

// SortOrder selects how ListCredentials orders its result.
type SortOrder int

const (
	// SortByTitle orders case-insensitively by title.
	SortByTitle SortOrder = iota
	// SortByUpdated puts the most recently changed first.
	SortByUpdated
	// SortByStrength puts the weakest first.
	SortByStrength
)

// Filter narrows ListCredentials. The zero value lists everything by title.
type Filter struct {
	CategoryID    string
	FavoritesOnly bool
	// Query matches title, username and website, case-insensitively.
	Query string
	Sort  SortOrder
}

func (f Filter) match(c models.Credential) bool {
	if f.CategoryID != "" && c.CategoryID != f.CategoryID {
		return false
	}
	if f.FavoritesOnly && !c.Favorite {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(c.Title), q) || strings.Contains(strings.ToLower(c.Username), q) {
		return true
	}
	return c.Website != nil && strings.Contains(strings.ToLower(*c.Website), q)
}

// ListCredentials returns the credentials matching f.
func (s *VaultService) ListCredentials(f Filter) []models.Credential {
	all := s.store.Credentials()
	out := all[:0]
	for _, c := range all {
		if f.match(c) {
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch f.Sort {
		case SortByUpdated:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
		case SortByStrength:
			if a.StrengthScore != b.StrengthScore {
				return a.StrengthScore < b.StrengthScore
			}
		}
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	})
	return out
}

// Get returns the credential with the given id.
func (s *VaultService) Get(id string) (models.Credential, error) {
	c, ok := s.store.Credential(id)
	if !ok {
		return models.Credential{}, ErrNotFound
	}
	return c, nil
}

// RecentlyUsed returns up to n credentials that have been used, newest first.
func (s *VaultService) RecentlyUsed(n int) []models.Credential {
	var used []models.Credential
	for _, c := range s.store.Credentials() {
		if c.LastUsedAt != nil {
			used = append(used, c)
		}
	}
	sort.SliceStable(used, func(i, j int) bool {
		return used[i].LastUsedAt.After(*used[j].LastUsedAt)
	})
	if n >= 0 && len(used) > n {
		used = used[:n]
	}
	return used
}

// ListCategories returns every category in display order.
func (s *VaultService) ListCategories() []models.Category {
	return s.store.Categories()
}

// ResolveCategory returns the category with the given id, or the
// uncategorized category if it no longer exists.
func (s *VaultService) ResolveCategory(id string) models.Category {
	if c, ok := s.store.Category(id); ok {
		return c
	}
	if c, ok := s.store.Category(models.UncategorizedID); ok {
		return c
	}
	return models.BuiltInCategories()[0]
}

// AddCategory creates a custom category placed after every existing one.
func (s *VaultService) AddCategory(ctx context.Context, name, icon, colorHex string) (models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Category{}, fmt.Errorf("%w: category name is empty", ErrInvalidInput)
	}
	order := 0
	for _, c := range s.store.Categories() {
		if c.SortOrder >= order {
			order = c.SortOrder + 1
		}
	}
	cat, err := s.store.UpsertCategory(ctx, models.Category{
		ID:        s.newID(),
		Name:      name,
		Icon:      icon,
		ColorHex:  colorHex,
		SortOrder: order,
	})
	if err != nil {
		return models.Category{}, mapStoreErr(err)
	}
	s.emit(Event{Kind: CategoryAdded, ID: cat.ID})
	return cat, nil
}

// RemoveCategory deletes a custom category. Credentials that used it resolve
// to the uncategorized category and are rewritten on the next Open.
func (s *VaultService) RemoveCategory(ctx context.Context, id string) error {
	if models.IsBuiltInCategoryID(id) {
		return ErrBuiltInCategory
	}
	if err := s.store.RemoveCategory(ctx, id); err != nil {
		return mapStoreErr(err)
	}
	s.emit(Event{Kind: CategoryRemoved, ID: id})
	return nil
}
