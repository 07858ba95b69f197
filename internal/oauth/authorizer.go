package oauth

import (
	"context"
	goerrors "errors"
	"math"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/picmigrate/picmigrate/internal/errors"
	"github.com/picmigrate/picmigrate/internal/logging"
	"github.com/picmigrate/picmigrate/internal/metrics"
	"github.com/picmigrate/picmigrate/internal/models"
	"github.com/picmigrate/picmigrate/internal/notify"
	"github.com/picmigrate/picmigrate/internal/tokenstore"
)

// State is the authorization state of one account.
type State string

const (
	StateUnauthenticated  State = "unauthenticated"
	StateAwaitingCallback State = "awaiting_callback"
	StateAuthenticated    State = "authenticated"
	StateExpired          State = "expired"
)

// Authorizer drives the OAuth2 authorization-code flow for every configured
// account. Each account carries a fixed anti-forgery state value which doubles
// as the callback disambiguator, so the callback handler can map a returned
// state back to the right client identity without session storage.
type Authorizer struct {
	accounts models.AccountSlice
	store    *tokenstore.Store
	journal  *logging.Journal
	logger   *logging.Logger
	endpoint oauth2.Endpoint
	metrics  *metrics.Metrics
	notifier *notify.Notifier

	mu      sync.Mutex
	pending map[string]struct{} // accounts with an authorization URL issued
}

// SetMetrics attaches a metrics sink for refresh outcomes.
func (a *Authorizer) SetMetrics(m *metrics.Metrics) {
	a.metrics = m
}

// SetNotifier attaches a notifier warned when an account loses its
// credentials and needs re-authorization.
func (a *Authorizer) SetNotifier(n *notify.Notifier) {
	a.notifier = n
}

// New builds an authorizer. Account validation rejects duplicate fixed state
// values up front: two identities sharing a state would make every callback
// ambiguous.
func New(accounts models.AccountSlice, store *tokenstore.Store, authURL, tokenURL string, journal *logging.Journal, logger *logging.Logger) (*Authorizer, error) {
	if err := accounts.Validate(); err != nil {
		return nil, err
	}
	return &Authorizer{
		accounts: accounts,
		store:    store,
		journal:  journal,
		logger:   logger,
		endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
			// Bling rejects client credentials embedded in the body.
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		pending: make(map[string]struct{}),
	}, nil
}

// Accounts returns the configured accounts.
func (a *Authorizer) Accounts() models.AccountSlice {
	return a.accounts
}

// AccountForState maps a callback state value back to its account.
func (a *Authorizer) AccountForState(state string) (*models.Account, bool) {
	return a.accounts.FindByState(state)
}

func (a *Authorizer) oauthConfig(acc *models.Account) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     acc.ClientID,
		ClientSecret: acc.ClientSecret,
		RedirectURL:  acc.RedirectURI,
		Endpoint:     a.endpoint,
	}
}

// AuthorizationURL returns the consent URL for an account, embedding its
// fixed state value, and marks the account as awaiting a callback.
func (a *Authorizer) AuthorizationURL(accountName string) (string, error) {
	acc, ok := a.accounts.FindByName(accountName)
	if !ok {
		return "", &errors.ErrNotAuthenticated{Account: accountName}
	}

	a.mu.Lock()
	a.pending[acc.Name] = struct{}{}
	a.mu.Unlock()

	return a.oauthConfig(acc).AuthCodeURL(acc.State), nil
}

// Exchange validates the received state against the account's fixed value and
// trades the authorization code for a credential record. The state check runs
// before any network call and fails closed on mismatch. The record is
// persisted before returning.
func (a *Authorizer) Exchange(ctx context.Context, acc *models.Account, code, receivedState string) (*models.CredentialRecord, error) {
	if receivedState != acc.State {
		a.journalf("OAuth state mismatch for account %s", acc.Name)
		return nil, &errors.ErrStateMismatch{
			Account:  acc.Name,
			Expected: acc.State,
			Received: receivedState,
		}
	}

	tok, err := a.oauthConfig(acc).Exchange(ctx, code)
	if err != nil {
		return nil, exchangeError(acc.Name, err)
	}

	rec := recordFromToken(tok)
	if err := a.store.Save(acc.Name, *rec); err != nil {
		return nil, err
	}

	a.mu.Lock()
	delete(a.pending, acc.Name)
	a.mu.Unlock()

	a.journalf("Account %s authenticated", acc.Name)
	return rec, nil
}

// Refresh trades a refresh token for a fresh credential record and persists
// it, overwriting the previous record.
func (a *Authorizer) Refresh(ctx context.Context, acc *models.Account, refreshToken string) (*models.CredentialRecord, error) {
	src := a.oauthConfig(acc).TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordTokenRefresh(acc.Name, "failure")
		}
		return nil, exchangeError(acc.Name, err)
	}
	if a.metrics != nil {
		a.metrics.RecordTokenRefresh(acc.Name, "success")
	}

	rec := recordFromToken(tok)
	if rec.RefreshToken == "" {
		rec.RefreshToken = refreshToken
	}
	if err := a.store.Save(acc.Name, *rec); err != nil {
		return nil, err
	}

	a.journalf("Tokens for account %s refreshed", acc.Name)
	return rec, nil
}

// CurrentToken returns a valid access token for the account, refreshing
// transparently when the stored record has expired but left a refresh token.
// When nothing usable remains the account must re-authorize.
func (a *Authorizer) CurrentToken(ctx context.Context, accountName string) (string, error) {
	acc, ok := a.accounts.FindByName(accountName)
	if !ok {
		return "", &errors.ErrNotAuthenticated{Account: accountName}
	}

	if rec, ok := a.store.Load(acc.Name); ok {
		return rec.AccessToken, nil
	}

	stale, ok := a.store.LoadStale(acc.Name)
	if !ok || !stale.Refreshable() {
		return "", &errors.ErrNotAuthenticated{Account: acc.Name}
	}

	rec, err := a.Refresh(ctx, acc, stale.RefreshToken)
	if err != nil {
		a.logger.Warn("token refresh failed, clearing stored record",
			"account", acc.Name, "error", err.Error())
		a.store.Clear(acc.Name)
		a.notifier.AccountDisconnected(acc.Name)
		return "", &errors.ErrNotAuthenticated{Account: acc.Name}
	}
	return rec.AccessToken, nil
}

// Status reports where an account sits in the authorization state machine.
func (a *Authorizer) Status(accountName string) State {
	if _, ok := a.store.Load(accountName); ok {
		return StateAuthenticated
	}
	if stale, ok := a.store.LoadStale(accountName); ok && stale.Refreshable() {
		return StateExpired
	}

	a.mu.Lock()
	_, awaiting := a.pending[accountName]
	a.mu.Unlock()
	if awaiting {
		return StateAwaitingCallback
	}
	return StateUnauthenticated
}

func (a *Authorizer) journalf(format string, args ...interface{}) {
	if a.journal == nil {
		return
	}
	if err := a.journal.Append(format, args...); err != nil {
		a.logger.Warn("journal append failed", "error", err.Error())
	}
}

// recordFromToken converts an oauth2 token into a credential record,
// recovering expires_in and scope from the raw response where available.
func recordFromToken(tok *oauth2.Token) *models.CredentialRecord {
	rec := &models.CredentialRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if v, ok := tok.Extra("expires_in").(float64); ok && v > 0 {
		rec.ExpiresIn = int64(v)
	} else if !tok.Expiry.IsZero() {
		rec.ExpiresIn = int64(math.Max(0, time.Until(tok.Expiry).Seconds()))
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		rec.Scope = scope
	}
	return rec
}

// exchangeError maps oauth2 failures into the local taxonomy, preserving the
// authorization server's status and body for diagnostics.
func exchangeError(account string, err error) error {
	var rErr *oauth2.RetrieveError
	if goerrors.As(err, &rErr) {
		status := 0
		if rErr.Response != nil {
			status = rErr.Response.StatusCode
		}
		return &errors.ErrExchangeFailed{
			Account: account,
			Status:  status,
			Body:    string(rErr.Body),
			Err:     err,
		}
	}
	return &errors.ErrExchangeFailed{Account: account, Err: err}
}
