// Package identity provides a read-only client for the platform's
// identity directory. The ledger never consults it for balance
// decisions; it exists solely so transaction history can show who the
// counterpart of a purchase was.
package identity

import "context"

// Profile is the display form of an owner reference.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Handle      string `json:"handle"`
}

// Directory resolves external owner references to display profiles in
// one batch per history page.
type Directory interface {
	Lookup(ctx context.Context, ids []string) (map[string]Profile, error)
}

// StaticDirectory answers every lookup with a placeholder profile. Used
// in dev mode when no directory service is configured.
type StaticDirectory struct{}

// Lookup returns a synthetic profile per requested id.
func (StaticDirectory) Lookup(_ context.Context, ids []string) (map[string]Profile, error) {
	out := make(map[string]Profile, len(ids))
	for _, id := range ids {
		out[id] = Profile{ID: id, DisplayName: "creator " + id, Handle: "@" + id}
	}
	return out, nil
}
