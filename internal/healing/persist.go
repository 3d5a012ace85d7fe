package healing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stepwright/internal/logging"
)

// Log writes one JSON document per journey healing session, incrementally:
// every persisted snapshot fully replaces the file, so a crash mid-session
// leaves an accurate partial record.
type Log struct {
	dir string
}

// NewLog creates a session log rooted at dir.
func NewLog(dir string) *Log {
	return &Log{dir: dir}
}

// Dir returns the log root.
func (l *Log) Dir() string { return l.dir }

// Persist writes the session snapshot atomically.
func (l *Log) Persist(s *Session) error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("create healing log dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	path := l.sessionPath(s)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write session log: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace session log: %w", err)
	}
	logging.Store("Persisted healing session %s (%s, %d attempts)", s.ID, s.Status, len(s.Attempts))
	return nil
}

// ReadAll loads every session document under the log root.
func (l *Log) ReadAll() ([]*Session, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read healing log dir: %w", err)
	}
	var sessions []*Session
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(l.dir, e.Name()))
		if err != nil {
			logging.StoreWarn("Skipping unreadable session log %s: %v", e.Name(), err)
			continue
		}
		var s Session
		if err := json.Unmarshal(data, &s); err != nil {
			logging.StoreWarn("Skipping corrupt session log %s: %v", e.Name(), err)
			continue
		}
		sessions = append(sessions, &s)
	}
	return sessions, nil
}

func (l *Log) sessionPath(s *Session) string {
	journey := sanitize(s.JourneyID)
	if journey == "" {
		journey = "unknown"
	}
	return filepath.Join(l.dir, fmt.Sprintf("%s_%s.json", journey, s.ID))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
