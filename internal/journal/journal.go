// Package journal appends one JSON line per action outcome to a local log.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/infrapilot/infrapilot/internal/outcome"
)

// DefaultPath is the journal location relative to the working directory.
var DefaultPath = filepath.Join(".infrapilot", "journal.log")

// staleLock is how old a lock file must be before it is broken.
const staleLock = 10 * time.Minute

// Entry is a single journal line.
type Entry struct {
	Timestamp     string   `json:"timestamp"`
	User          string   `json:"user"`
	Action        string   `json:"action"`
	Outcome       string   `json:"outcome"`
	Target        string   `json:"target,omitempty"`
	Requested     string   `json:"requested,omitempty"`
	Region        string   `json:"region,omitempty"`
	Command       string   `json:"command,omitempty"`
	Status        string   `json:"status,omitempty"`
	AutoCorrected bool     `json:"autoCorrected,omitempty"`
	Alternatives  []string `json:"alternatives,omitempty"`
	Message       string   `json:"message,omitempty"`
	Detail        string   `json:"detail,omitempty"`
}

// Journal writes entries to a file.
type Journal struct {
	path string
	now  func() time.Time
}

// New returns a journal writing to path.
func New(path string) *Journal {
	if path == "" {
		path = DefaultPath
	}
	return &Journal{path: path, now: time.Now}
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

// Record appends the outcome under the journal lock.
func (j *Journal) Record(o *outcome.Outcome) error {
	entry := Entry{
		Timestamp:     j.now().UTC().Format(time.RFC3339),
		User:          currentUser(),
		Action:        o.Action,
		Outcome:       string(o.Kind),
		Target:        o.Target,
		Requested:     o.Requested,
		Region:        o.Region,
		Command:       o.Command,
		Status:        o.Status,
		AutoCorrected: o.AutoCorrected,
		Alternatives:  o.Alternatives,
		Message:       o.Message,
		Detail:        o.Detail,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}
	if err := j.lock(); err != nil {
		return err
	}
	defer j.unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	return nil
}

// Read returns the last limit entries, oldest first. limit <= 0 returns all.
func (j *Journal) Read(limit int) ([]Entry, error) {
	f, err := os.Open(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("corrupt journal line: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func (j *Journal) lockPath() string { return j.path + ".lock" }

// lock creates the lock file, breaking it when it is older than staleLock.
func (j *Journal) lock() error {
	path := j.lockPath()
	if info, err := os.Stat(path); err == nil {
		if time.Since(info.ModTime()) <= staleLock {
			return fmt.Errorf("journal is locked by another process (lock file: %s). "+
				"If this is an error, remove the lock file manually", path)
		}
		os.Remove(path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "pid=%d\ntime=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (j *Journal) unlock() {
	if err := os.Remove(j.lockPath()); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to remove journal lock: %v\n", err)
	}
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	if user := os.Getenv("USERNAME"); user != "" {
		return user
	}
	return "unknown"
}
