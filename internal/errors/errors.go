package errors

import "fmt"

// OAuth errors

// ErrStateMismatch is raised when a callback state value does not match the
// fixed value registered for the inferred account. The authorization attempt
// is aborted before any token endpoint call is made.
type ErrStateMismatch struct {
	Account  string
	Expected string
	Received string
}

func (e *ErrStateMismatch) Error() string {
	return fmt.Sprintf("oauth state mismatch for account %s: expected %q, received %q", e.Account, e.Expected, e.Received)
}

// ErrExchangeFailed carries the token endpoint's status and body for
// diagnostics when a code exchange or refresh returns non-2xx.
type ErrExchangeFailed struct {
	Account string
	Status  int
	Body    string
	Err     error
}

func (e *ErrExchangeFailed) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("token exchange failed for account %s: status %d: %s", e.Account, e.Status, e.Body)
	}
	return fmt.Sprintf("token exchange failed for account %s: %v", e.Account, e.Err)
}

func (e *ErrExchangeFailed) Unwrap() error {
	return e.Err
}

// Token store errors

type ErrTokenExpired struct {
	Account string
}

func (e *ErrTokenExpired) Error() string {
	return fmt.Sprintf("stored token for account %s has expired", e.Account)
}

type ErrTokenCorrupt struct {
	Account string
	Path    string
	Err     error
}

func (e *ErrTokenCorrupt) Error() string {
	return fmt.Sprintf("stored token for account %s at %s is unreadable: %v", e.Account, e.Path, e.Err)
}

func (e *ErrTokenCorrupt) Unwrap() error {
	return e.Err
}

// ErrNotAuthenticated is returned when an operation needs a valid token and
// no usable credential record exists for the account.
type ErrNotAuthenticated struct {
	Account string
}

func (e *ErrNotAuthenticated) Error() string {
	return fmt.Sprintf("account %s is not authenticated", e.Account)
}

// Catalog errors

// ErrProductNotFound means the exact SKU lookup matched nothing. Non-fatal
// for the source account, terminal for the destination.
type ErrProductNotFound struct {
	Account string
	SKU     string
}

func (e *ErrProductNotFound) Error() string {
	return fmt.Sprintf("no product with SKU %s in account %s", e.SKU, e.Account)
}

// ErrVariantFetch is logged and suppressed: a variant detail fetch failure
// never aborts the SKU.
type ErrVariantFetch struct {
	VariantID int64
	Err       error
}

func (e *ErrVariantFetch) Error() string {
	return fmt.Sprintf("variant %d fetch failed: %v", e.VariantID, e.Err)
}

func (e *ErrVariantFetch) Unwrap() error {
	return e.Err
}

// ErrAPIStatus preserves a non-2xx upstream response.
type ErrAPIStatus struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *ErrAPIStatus) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// Transfer errors

type TransferStage string

const (
	StageDownload TransferStage = "download"
	StageUpload   TransferStage = "upload"
)

// ErrTransfer aborts the current SKU's migration and is tallied as a failure
// in the batch summary.
type ErrTransfer struct {
	Stage TransferStage
	SKU   string
	URL   string
	Err   error
}

func (e *ErrTransfer) Error() string {
	return fmt.Sprintf("%s failed for SKU %s (%s): %v", e.Stage, e.SKU, e.URL, e.Err)
}

func (e *ErrTransfer) Unwrap() error {
	return e.Err
}

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}

type ErrServerShutdown struct {
	Err error
}

func (e *ErrServerShutdown) Error() string {
	return fmt.Sprintf("server shutdown failed: %v", e.Err)
}

func (e *ErrServerShutdown) Unwrap() error {
	return e.Err
}
