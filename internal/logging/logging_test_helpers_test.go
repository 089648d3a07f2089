package logging

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// setupTestLogger redirects the package logger to an in-memory buffer so
// tests can assert on emitted JSON fields without touching stdout.
func setupTestLogger() (*bytes.Buffer, func()) {
	var buf bytes.Buffer

	originalLogger := log.Logger
	originalDefaultLogger := DefaultLogger

	logger := zerolog.New(&buf).With().Timestamp().Logger()
	log.Logger = logger
	DefaultLogger = Logger{zl: logger}

	return &buf, func() {
		log.Logger = originalLogger
		DefaultLogger = originalDefaultLogger
	}
}

// parseLogEntry decodes the first JSON log line in buf.
func parseLogEntry(buf *bytes.Buffer) (map[string]interface{}, error) {
	var entry map[string]interface{}
	bufCopy := bytes.NewBuffer(buf.Bytes())
	decoder := json.NewDecoder(bufCopy)
	if err := decoder.Decode(&entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// parseLogEntries decodes every JSON log line in buf.
func parseLogEntries(buf *bytes.Buffer) ([]map[string]interface{}, error) {
	var entries []map[string]interface{}
	bufCopy := bytes.NewBuffer(buf.Bytes())
	decoder := json.NewDecoder(bufCopy)
	for {
		var entry map[string]interface{}
		if err := decoder.Decode(&entry); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
