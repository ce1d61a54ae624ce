package sessionlog

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// FieldStatus marks an info entry as a success report
const FieldStatus = "status"

// StatusSuccess is the FieldStatus value rendered as SUCCESS
const StatusSuccess = "success"

const (
	LevelInfo    = "INFO"
	LevelSuccess = "SUCCESS"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
	LevelDebug   = "DEBUG"
)

// Formatter renders `<RFC3339 time> [LEVEL] message key=value ...` lines
type Formatter struct {
	TimestampFormat string
}

// Format implements log.Formatter
func (f *Formatter) Format(entry *log.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	timestampFormat := f.TimestampFormat
	if timestampFormat == "" {
		timestampFormat = time.RFC3339
	}

	fmt.Fprintf(b, "%s [%s] %s", entry.Time.Format(timestampFormat), LevelName(entry), entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k == FieldStatus {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value := fmt.Sprint(entry.Data[k])
		if strings.ContainsAny(value, " \t\n\"") {
			value = fmt.Sprintf("%q", value)
		}
		fmt.Fprintf(b, " %s=%s", k, value)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// LevelName maps a logrus entry onto the session log levels
func LevelName(entry *log.Entry) string {
	switch entry.Level {
	case log.PanicLevel, log.FatalLevel, log.ErrorLevel:
		return LevelError
	case log.WarnLevel:
		return LevelWarning
	case log.DebugLevel, log.TraceLevel:
		return LevelDebug
	}
	if status, ok := entry.Data[FieldStatus]; ok && status == StatusSuccess {
		return LevelSuccess
	}
	return LevelInfo
}
