package workflow

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"astropitography/internal/config"
	"astropitography/internal/logging"
	"astropitography/internal/queue"
)

// SessionLogger manages dedicated log files for queue sessions. Every stage a
// session passes through appends to the same JSON file under
// <log_dir>/sessions, so one night's captures can be audited one session at a
// time.
type SessionLogger struct {
	baseDir string
	cfg     *config.Config

	mu       sync.Mutex
	handlers map[string]slog.Handler
}

// NewSessionLogger creates a session logger rooted under the configured log
// directory.
func NewSessionLogger(cfg *config.Config) *SessionLogger {
	dir := ""
	if cfg != nil && cfg.Paths.LogDir != "" {
		dir = filepath.Join(cfg.Paths.LogDir, "sessions")
	}
	return &SessionLogger{
		baseDir:  dir,
		cfg:      cfg,
		handlers: make(map[string]slog.Handler),
	}
}

// Path reports the log file for a session. The name derives only from
// immutable session fields, so every stage resolves the same file without
// anything being persisted on the queue row.
func (s *SessionLogger) Path(item *queue.Item) (string, error) {
	if item == nil {
		return "", fmt.Errorf("queue item is nil")
	}
	if strings.TrimSpace(s.baseDir) == "" {
		return "", fmt.Errorf("session log directory not configured")
	}
	name := fmt.Sprintf("%s-session-%d", item.CreatedAt.UTC().Format("20060102"), item.ID)
	if slug := strings.TrimSpace(item.SlugName); slug != "" {
		name = fmt.Sprintf("%s-%s", name, slug)
	}
	return filepath.Join(s.baseDir, name+".log"), nil
}

// Handler returns a slog handler appending to the session's log file,
// creating the file on first use. Handlers are cached per path so repeated
// stages share one open file.
func (s *SessionLogger) Handler(item *queue.Item) (slog.Handler, string, error) {
	path, err := s.Path(item)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if handler, ok := s.handlers[path]; ok {
		return handler, path, nil
	}

	level := "info"
	if s.cfg != nil && strings.TrimSpace(s.cfg.Logging.Level) != "" {
		level = s.cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           "json",
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
	})
	if err != nil {
		return nil, "", err
	}
	handler := logger.Handler()
	s.handlers[path] = handler
	return handler, path, nil
}
