// Package logging configures logrus for the goauthclient binaries.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/MrEthical07/goAuthClient/internal/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	writerMu  sync.Mutex
	logWriter *lumberjack.Logger
)

// Formatter renders one line per entry:
//
//	[2026-01-02 15:04:05] [info ] restored session from store op=restore
type Formatter struct{}

// fieldOrder lists the fields printed first, in this order; the rest follow
// sorted by name.
var fieldOrder = []string{"component", "op", "ticket", "subject", "kind", "state", "error"}

func (f *Formatter) Format(entry *log.Entry) ([]byte, error) {
	buffer := entry.Buffer
	if buffer == nil {
		buffer = &bytes.Buffer{}
	}

	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}
	fmt.Fprintf(buffer, "[%s] [%-5s] %s",
		entry.Time.Format("2006-01-02 15:04:05"), level, strings.TrimRight(entry.Message, "\r\n"))

	seen := make(map[string]bool, len(fieldOrder))
	for _, k := range fieldOrder {
		if v, ok := entry.Data[k]; ok {
			fmt.Fprintf(buffer, " %s=%v", k, v)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		fmt.Fprintf(buffer, " %s=%v", k, entry.Data[k])
	}
	buffer.WriteByte('\n')
	return buffer.Bytes(), nil
}

// Configure applies cfg to logger: level, formatter and output. With a
// file configured, output goes to a rotating lumberjack writer; otherwise to
// stderr. Calling it again replaces the previous file writer.
func Configure(logger *log.Logger, cfg config.LoggingConfig) error {
	level, err := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&Formatter{})

	writerMu.Lock()
	defer writerMu.Unlock()

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
	if cfg.File == "" {
		logger.SetOutput(os.Stderr)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return fmt.Errorf("logging: failed to create log directory: %w", err)
	}
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	logWriter = &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: 3,
		Compress:   false,
	}
	logger.SetOutput(logWriter)
	return nil
}

// Close flushes and closes the rotating writer, if any, and points logger
// back at stderr.
func Close(logger *log.Logger) {
	writerMu.Lock()
	defer writerMu.Unlock()
	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
	if logger != nil {
		logger.SetOutput(os.Stderr)
	}
}

// Discard returns a logger that writes nothing.
func Discard() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}
