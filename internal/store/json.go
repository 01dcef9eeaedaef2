// Package store owns persistence: the JSON contract files (account
// links, claim records, the reward table, the cached start time) and the
// SQLite history archive. JSON files are read-modify-written with a
// temp-then-rename so a reader never observes a half-written file; a
// corrupt file is quarantined and replaced with a fresh default instead
// of aborting the operation.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Files is the JSON key/value store rooted at a data directory.
type Files struct {
	dir string
}

// Open ensures the data directory exists and returns the store.
func Open(dir string) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &Files{dir: dir}, nil
}

// ClaimRecord is one user's daily-reward claim state. LastClaim is
// serialized as ISO-8601 with offset.
type ClaimRecord struct {
	LastClaim time.Time `json:"last_claim"`
	Streak    int       `json:"streak"`
}

// Reward is one day's entry in the weekly reward table.
type Reward struct {
	Item   string `json:"item"`
	Amount int    `json:"amount"`
}

// StartTimeRecord caches the resolved server start instant across bridge
// restarts.
type StartTimeRecord struct {
	Timestamp float64 `json:"timestamp"`
}

func (f *Files) linksPath() string     { return filepath.Join(f.dir, "linked_users.json") }
func (f *Files) claimsPath() string    { return filepath.Join(f.dir, "daily_claims.json") }
func (f *Files) rewardsPath() string   { return filepath.Join(f.dir, "daily_rewards.json") }
func (f *Files) startTimePath() string { return filepath.Join(f.dir, "start_time.json") }

// Links returns the chat-identity → username map.
func (f *Files) Links() (map[string]string, error) {
	links := make(map[string]string)
	if err := readJSON(f.linksPath(), &links); err != nil {
		return nil, err
	}
	return links, nil
}

// LinkedUsername looks up the username linked to a chat identity.
func (f *Files) LinkedUsername(chatID string) (string, bool, error) {
	links, err := f.Links()
	if err != nil {
		return "", false, err
	}
	name, ok := links[chatID]
	return name, ok, nil
}

// SetLink records a chat identity → username mapping, last write wins.
// Returns the previous username, if any.
func (f *Files) SetLink(chatID, username string) (string, error) {
	links, err := f.Links()
	if err != nil {
		return "", err
	}
	prev := links[chatID]
	links[chatID] = username
	if err := writeJSON(f.linksPath(), links); err != nil {
		return "", err
	}
	return prev, nil
}

// Claims returns all claim records keyed by username.
func (f *Files) Claims() (map[string]ClaimRecord, error) {
	claims := make(map[string]ClaimRecord)
	if err := readJSON(f.claimsPath(), &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Claim returns one user's claim record.
func (f *Files) Claim(username string) (ClaimRecord, bool, error) {
	claims, err := f.Claims()
	if err != nil {
		return ClaimRecord{}, false, err
	}
	rec, ok := claims[username]
	return rec, ok, nil
}

// SetClaim overwrites a user's claim record.
func (f *Files) SetClaim(username string, rec ClaimRecord) error {
	claims, err := f.Claims()
	if err != nil {
		return err
	}
	claims[username] = rec
	return writeJSON(f.claimsPath(), claims)
}

// Rewards loads the weekly reward table keyed "1".."7".
func (f *Files) Rewards() (map[string]Reward, error) {
	rewards := make(map[string]Reward)
	if err := readJSON(f.rewardsPath(), &rewards); err != nil {
		return nil, err
	}
	return rewards, nil
}

// LoadStartTime reads the cached start-time record. Returns ok=false
// when no cache exists.
func (f *Files) LoadStartTime() (StartTimeRecord, bool, error) {
	var rec StartTimeRecord
	err := readJSON(f.startTimePath(), &rec)
	if err != nil {
		return StartTimeRecord{}, false, err
	}
	if rec.Timestamp == 0 {
		return StartTimeRecord{}, false, nil
	}
	return rec, true, nil
}

// SaveStartTime caches the server start instant.
func (f *Files) SaveStartTime(t time.Time) error {
	rec := StartTimeRecord{Timestamp: float64(t.UnixNano()) / float64(time.Second)}
	return writeJSON(f.startTimePath(), rec)
}

// readJSON loads path into v. A missing file leaves v at its zero
// default. A file that exists but will not parse is renamed aside with
// a .corrupt suffix so the caller proceeds with a fresh default.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		quarantine := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		if renameErr := os.Rename(path, quarantine); renameErr == nil {
			return nil
		}
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// writeJSON writes v to path via a temp file and rename.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
