// Package logging configures the zerolog logger used by every crew command.
//
// Console output goes to stderr (pretty on a TTY, JSON otherwise) and a
// rotating copy is written under the project's log directory.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// FileName is the log file name inside the log directory.
	FileName = "crew.log"

	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 14
)

// Options controls logger construction.
type Options struct {
	Verbose    bool
	Quiet      bool
	Dir        string // log directory; empty disables the file sink
	FileOnly   bool   // no console output, for full-screen UIs
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	fileWriter   io.WriteCloser
	globalMu     sync.Mutex
	globalsSetUp sync.Once
)

func configureGlobals() {
	globalsSetUp.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339
	})
}

// Init builds the logger, installs it as the zerolog global, and returns it.
// A file sink that cannot be created is skipped; console logging continues.
func Init(opts Options) zerolog.Logger {
	configureGlobals()

	console := selectOutput()
	if opts.FileOnly {
		console = io.Discard
	}
	writer := console

	if opts.Dir != "" {
		fw, err := newFileWriter(opts)
		if err == nil {
			globalMu.Lock()
			fileWriter = fw
			globalMu.Unlock()
			writer = zerolog.MultiLevelWriter(console, fw)
		}
	}

	logger := zerolog.New(writer).
		Level(selectLevel(opts.Verbose, opts.Quiet)).
		Hook(NewSecretHook()).
		With().Timestamp().Logger()
	setGlobal(logger)
	return logger
}

// InitWithWriter builds a logger writing only to w. Used by tests.
func InitWithWriter(verbose, quiet bool, w io.Writer) zerolog.Logger {
	configureGlobals()
	logger := zerolog.New(w).Level(selectLevel(verbose, quiet)).Hook(NewSecretHook()).With().Timestamp().Logger()
	setGlobal(logger)
	return logger
}

// Close releases the file sink, if one was opened.
func Close() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
	}
}

// Path returns the log file path for a log directory.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

func setGlobal(l zerolog.Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	log.Logger = l
}

func selectLevel(verbose, quiet bool) zerolog.Level {
	switch {
	case verbose:
		return zerolog.DebugLevel
	case quiet:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

func selectOutput() io.Writer {
	if term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		}
	}
	return os.Stderr
}

func newFileWriter(opts Options) (io.WriteCloser, error) {
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename:   Path(opts.Dir),
		MaxSize:    orDefault(opts.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups: orDefault(opts.MaxBackups, defaultMaxBackups),
		MaxAge:     orDefault(opts.MaxAgeDays, defaultMaxAgeDays),
		Compress:   true,
	}
	return &redactingWriteCloser{w: NewRedactingWriter(lj), c: lj}, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
