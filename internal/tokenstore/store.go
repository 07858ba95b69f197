package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/picmigrate/picmigrate/internal/errors"
	"github.com/picmigrate/picmigrate/internal/logging"
	"github.com/picmigrate/picmigrate/internal/models"
)

// Store persists one credential record per account as token_<account>.json
// under the storage root. Writes are atomic (temp file + rename) so a crash
// mid-write never corrupts the next load.
type Store struct {
	mu      sync.Mutex
	root    string
	journal *logging.Journal
	logger  *logging.Logger
	now     func() time.Time
}

// New creates a token store rooted at the given directory.
func New(root string, journal *logging.Journal, logger *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &errors.ErrDirectoryCreate{Path: root, Err: err}
	}
	return &Store{
		root:    root,
		journal: journal,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Path returns the token file path for an account.
func (s *Store) Path(account string) string {
	return filepath.Join(s.root, fmt.Sprintf("token_%s.json", account))
}

// Save stamps expires_at and writes the record atomically. An audit line is
// appended to the migration journal.
func (s *Store) Save(account string, rec models.CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Stamp(s.now())

	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return err
	}

	path := s.Path(account)
	tmp, err := os.CreateTemp(s.root, "token_*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	s.journalf("Tokens for account %s saved to %s", account, path)
	return nil
}

// Load returns the valid credential record for an account, or false when no
// usable record exists. A file that fails to parse, or whose record has
// expired without leaving a refresh token, is deleted so the next attempt
// starts from a clean re-authorization.
func (s *Store) Load(account string) (*models.CredentialRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(account)
	if err != nil {
		s.logger.Warn("token file unreadable, removing", "account", account, "error", err.Error())
		s.journalf("Token file for account %s is corrupt, forcing re-authorization", account)
		os.Remove(s.Path(account))
		return nil, false
	}
	if rec == nil {
		return nil, false
	}

	if rec.Expired(s.now()) {
		if !rec.Refreshable() {
			s.journalf("Tokens for account %s expired, forcing re-authorization", account)
			os.Remove(s.Path(account))
		}
		return nil, false
	}

	return rec, true
}

// LoadStale returns whatever record is on disk, expired or not. The refresh
// path uses it to recover the refresh token after Load reported absent.
func (s *Store) LoadStale(account string) (*models.CredentialRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(account)
	if err != nil || rec == nil {
		return nil, false
	}
	return rec, true
}

// Clear removes the token file for one account.
func (s *Store) Clear(account string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(account)); err == nil {
		s.journalf("Token for account %s removed", account)
	}
}

// ClearAll removes every token file under the root. Used by the operator
// reset action.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return &errors.ErrFileRead{Path: s.root, Err: err}
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "token_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, name)); err == nil {
			s.journalf("Token file %s removed", name)
		}
	}
	return nil
}

// Connected reports which of the given accounts currently hold a valid token.
func (s *Store) Connected(accounts models.AccountSlice) map[string]bool {
	out := make(map[string]bool, len(accounts))
	for i := range accounts {
		_, ok := s.Load(accounts[i].Name)
		out[accounts[i].Name] = ok
	}
	return out
}

func (s *Store) read(account string) (*models.CredentialRecord, error) {
	path := s.Path(account)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &errors.ErrFileRead{Path: path, Err: err}
	}

	var rec models.CredentialRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &errors.ErrTokenCorrupt{Account: account, Path: path, Err: err}
	}
	return &rec, nil
}

func (s *Store) journalf(format string, args ...interface{}) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Append(format, args...); err != nil {
		s.logger.Warn("journal append failed", "error", err.Error())
	}
}
