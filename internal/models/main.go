// Package models defines the core data structures for credentials, categories
// and derived security reports.
package models

import "time"

// Credential is a stored login. Everything except SecretCiphertext is kept in
// plaintext so listing and reporting never need the data-encryption key.
type Credential struct {
	// ID is the immutable unique identifier of the credential.
	ID string `json:"id" cbor:"1,keyasint"`
	// Title is the user-facing label ("GitHub", "Bank").
	Title string `json:"title" cbor:"2,keyasint"`
	// Username is the login name for the service.
	Username string `json:"username" cbor:"3,keyasint"`
	// SecretCiphertext is the sealed secret: nonce || ciphertext || tag.
	SecretCiphertext []byte `json:"secret" cbor:"4,keyasint"`
	// CategoryID is a weak reference to a Category and may dangle.
	CategoryID string `json:"category_id" cbor:"5,keyasint"`
	// StrengthScore is computed from the plaintext at write time (0..100).
	StrengthScore int `json:"strength_score" cbor:"6,keyasint"`
	// Favorite marks the credential for quick access.
	Favorite bool `json:"favorite" cbor:"7,keyasint"`
	// Notes holds optional free-form text.
	Notes *string `json:"notes,omitempty" cbor:"8,keyasint,omitempty"`
	// Website holds an optional URL.
	Website *string `json:"website,omitempty" cbor:"9,keyasint,omitempty"`
	// CreatedAt is set once when the credential is first stored.
	CreatedAt time.Time `json:"created_at" cbor:"10,keyasint"`
	// UpdatedAt is bumped on every persisted mutation.
	UpdatedAt time.Time `json:"updated_at" cbor:"11,keyasint"`
	// LastUsedAt records the last time the secret was used.
	LastUsedAt *time.Time `json:"last_used_at,omitempty" cbor:"12,keyasint,omitempty"`
}

// Clone returns a deep copy so callers never alias cached state.
func (c Credential) Clone() Credential {
	out := c
	if c.SecretCiphertext != nil {
		out.SecretCiphertext = append([]byte(nil), c.SecretCiphertext...)
	}
	if c.Notes != nil {
		n := *c.Notes
		out.Notes = &n
	}
	if c.Website != nil {
		w := *c.Website
		out.Website = &w
	}
	if c.LastUsedAt != nil {
		t := *c.LastUsedAt
		out.LastUsedAt = &t
	}
	return out
}

// Category groups credentials. Categories are not sensitive and are persisted
// in plaintext.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	ColorHex  string `json:"color_hex"`
	IsBuiltIn bool   `json:"is_built_in"`
	SortOrder int    `json:"sort_order"`
}

// Well-known identifiers of the built-in categories. Stored credentials refer
// to these values, so they must never change.
const (
	UncategorizedID = "4f1c0e0a-0000-4000-8000-000000000000"
	SocialID        = "4f1c0e0a-0000-4000-8000-000000000001"
	FinanceID       = "4f1c0e0a-0000-4000-8000-000000000002"
	EmailID         = "4f1c0e0a-0000-4000-8000-000000000003"
	ShoppingID      = "4f1c0e0a-0000-4000-8000-000000000004"
	DevToolsID      = "4f1c0e0a-0000-4000-8000-000000000005"
	WorkID          = "4f1c0e0a-0000-4000-8000-000000000006"
	EntertainmentID = "4f1c0e0a-0000-4000-8000-000000000007"
)

// BuiltInCategories returns a fresh copy of the built-in category set.
func BuiltInCategories() []Category {
	return []Category{
		{ID: UncategorizedID, Name: "Uncategorized", Icon: "folder", ColorHex: "#8E8E93", IsBuiltIn: true, SortOrder: 0},
		{ID: SocialID, Name: "Social", Icon: "person.2", ColorHex: "#007AFF", IsBuiltIn: true, SortOrder: 1},
		{ID: FinanceID, Name: "Finance", Icon: "creditcard", ColorHex: "#34C759", IsBuiltIn: true, SortOrder: 2},
		{ID: EmailID, Name: "Email", Icon: "envelope", ColorHex: "#FF9500", IsBuiltIn: true, SortOrder: 3},
		{ID: ShoppingID, Name: "Shopping", Icon: "cart", ColorHex: "#FF2D55", IsBuiltIn: true, SortOrder: 4},
		{ID: DevToolsID, Name: "Developer Tools", Icon: "hammer", ColorHex: "#5856D6", IsBuiltIn: true, SortOrder: 5},
		{ID: WorkID, Name: "Work", Icon: "briefcase", ColorHex: "#AF52DE", IsBuiltIn: true, SortOrder: 6},
		{ID: EntertainmentID, Name: "Entertainment", Icon: "film", ColorHex: "#FF3B30", IsBuiltIn: true, SortOrder: 7},
	}
}

// IsBuiltInCategoryID reports whether id is one of the reserved identifiers.
func IsBuiltInCategoryID(id string) bool {
	for _, c := range BuiltInCategories() {
		if c.ID == id {
			return true
		}
	}
	return false
}
