package models

import "fmt"

// AccountRole marks the direction an account plays in a migration.
type AccountRole string

const (
	RoleOrigin      AccountRole = "origin"
	RoleDestination AccountRole = "destination"
)

// Account holds the OAuth client identity and endpoints for one Bling account.
type Account struct {
	Name         string      `json:"name"`
	Role         AccountRole `json:"role"`
	ClientID     string      `json:"client_id"`
	ClientSecret string      `json:"-"`
	RedirectURI  string      `json:"redirect_uri"`

	// State is the fixed anti-forgery value embedded in authorization URLs
	// for this account. It doubles as the callback disambiguator, so it must
	// be distinct across accounts.
	State string `json:"state"`
}

// DefaultState derives the fixed state value for an account name.
func DefaultState(name string) string {
	return fmt.Sprintf("state_%s_fixed_v1", name)
}

// Validate checks that the account carries everything an OAuth flow needs.
func (a *Account) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("account name is required")
	}
	if a.Role != RoleOrigin && a.Role != RoleDestination {
		return fmt.Errorf("account %s: role must be origin or destination", a.Name)
	}
	if a.ClientID == "" {
		return fmt.Errorf("account %s: client_id is required", a.Name)
	}
	if a.ClientSecret == "" {
		return fmt.Errorf("account %s: client_secret is required", a.Name)
	}
	if a.RedirectURI == "" {
		return fmt.Errorf("account %s: redirect_uri is required", a.Name)
	}
	if a.State == "" {
		return fmt.Errorf("account %s: state is required", a.Name)
	}
	return nil
}

// AccountSlice is a slice of accounts with lookup helpers.
type AccountSlice []Account

// FindByName returns an account by name.
func (as AccountSlice) FindByName(name string) (*Account, bool) {
	for i := range as {
		if as[i].Name == name {
			return &as[i], true
		}
	}
	return nil, false
}

// FindByState returns the account registered under a fixed state value.
func (as AccountSlice) FindByState(state string) (*Account, bool) {
	for i := range as {
		if as[i].State == state {
			return &as[i], true
		}
	}
	return nil, false
}

// FindByRole returns the first account playing the given role.
func (as AccountSlice) FindByRole(role AccountRole) (*Account, bool) {
	for i := range as {
		if as[i].Role == role {
			return &as[i], true
		}
	}
	return nil, false
}

// Validate checks every account and rejects duplicate state values, since a
// shared state would make the OAuth callback ambiguous between accounts.
func (as AccountSlice) Validate() error {
	seen := make(map[string]string, len(as))
	for i := range as {
		if err := as[i].Validate(); err != nil {
			return err
		}
		if other, dup := seen[as[i].State]; dup {
			return fmt.Errorf("accounts %s and %s share state value %q", other, as[i].Name, as[i].State)
		}
		seen[as[i].State] = as[i].Name
	}
	return nil
}
