package sessionlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// Log is the structured log stream of one repair session. Entries go to the
// console and to a session scoped artifact file
type Log struct {
	*log.Entry

	logger *log.Logger
	file   *os.File
	path   string
}

// New creates <dir>/bootrepair-<sessionID>.log and a logger writing to it and to console
func New(dir, sessionID string, console io.Writer, debug bool) (*Log, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("bootrepair-%s.log", sessionID))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("open session log %s: %w", path, err)
	}

	var out io.Writer = file
	if console != nil {
		out = io.MultiWriter(console, file)
	}

	l := NewWithWriter(out, debug)
	l.Entry = l.Entry.WithField("session", sessionID)
	l.file = file
	l.path = path
	return l, nil
}

// NewWithWriter creates a session log without an artifact, used by tests and dry runs
func NewWithWriter(out io.Writer, debug bool) *Log {
	logger := log.New()
	logger.SetOutput(out)
	logger.SetFormatter(&Formatter{})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	return &Log{Entry: log.NewEntry(logger), logger: logger}
}

// Path of the session artifact, empty when there's none
func (l *Log) Path() string {
	return l.path
}

// Success logs msg at the SUCCESS level
func (l *Log) Success(msg string) {
	Success(l.Entry, msg)
}

// Successf logs a formatted message at the SUCCESS level
func (l *Log) Successf(format string, args ...interface{}) {
	Success(l.Entry, fmt.Sprintf(format, args...))
}

// Close flushes and closes the artifact
func (l *Log) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Success logs msg on entry at the SUCCESS level
func Success(entry *log.Entry, msg string) {
	entry.WithField(FieldStatus, StatusSuccess).Info(msg)
}
