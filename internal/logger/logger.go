// Package logger provides the process-wide zerolog logger with file rotation.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Output formats for the log file.
const (
	FormatJSON  = "json"
	FormatFixed = "fixed"
)

const consoleBufferSize = 1000

// asyncWriter never blocks the caller. A slow or stalled console (a paused
// terminal, a full pipe) must not delay the control loop, so lines are queued
// and dropped when the queue is full.
type asyncWriter struct {
	ch     chan []byte
	w      io.Writer
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

func newAsyncWriter(w io.Writer, bufSize int) *asyncWriter {
	aw := &asyncWriter{
		ch:   make(chan []byte, bufSize),
		w:    w,
		done: make(chan struct{}),
	}
	go aw.drain()
	return aw
}

func (aw *asyncWriter) Write(p []byte) (int, error) {
	aw.mu.RLock()
	defer aw.mu.RUnlock()
	if aw.closed {
		return len(p), nil
	}
	line := append([]byte(nil), p...)
	select {
	case aw.ch <- line:
	default:
	}
	return len(p), nil
}

func (aw *asyncWriter) drain() {
	defer close(aw.done)
	for p := range aw.ch {
		_, _ = aw.w.Write(p)
	}
}

// Close flushes queued lines and stops the drain goroutine.
func (aw *asyncWriter) Close() {
	aw.once.Do(func() {
		aw.mu.Lock()
		aw.closed = true
		aw.mu.Unlock()
		close(aw.ch)
		<-aw.done
	})
}

// Config holds the logging section of the configuration file.
type Config struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"file_path"`
	Format     string `yaml:"format"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Console    bool   `yaml:"console"`
}

// DefaultConfig returns the logging defaults.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		FilePath:   "log/smartfan/smartfan.log",
		Format:     FormatJSON,
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
		Console:    true,
	}
}

// swapWriter is the fixed output of every logger handed out by this package.
// Init replaces its target, so child loggers taken before a reload follow it.
// Writes hold the read lock, so a target is never closed mid-write.
type swapWriter struct {
	mu     sync.RWMutex
	target zerolog.LevelWriter
}

func (sw *swapWriter) Write(p []byte) (int, error) {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.target.Write(p)
}

func (sw *swapWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.target.WriteLevel(l, p)
}

// swap installs target and runs release once no write is in flight.
func (sw *swapWriter) swap(target zerolog.LevelWriter, release func()) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.target = target
	release()
}

var (
	mu            sync.Mutex
	output        = &swapWriter{target: zerolog.MultiLevelWriter(io.Discard)}
	globalLogger  = zerolog.New(output).With().Timestamp().Caller().Logger()
	activeFile    io.Closer
	activeConsole *asyncWriter
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// Init (re)configures the global logger. It may be called again when the
// configuration file changes, concurrently with logging; writers from the
// previous call are closed.
func Init(cfg Config) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	mu.Lock()
	defer mu.Unlock()

	file, console, writers, err := openWriters(cfg)
	if err != nil {
		return err
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	output.swap(zerolog.MultiLevelWriter(writers...), closeWriters)
	activeFile, activeConsole = file, console
	zerolog.SetGlobalLevel(level)
	return nil
}

// Close flushes and releases the current writers. Later log lines are dropped.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	output.swap(zerolog.MultiLevelWriter(io.Discard), closeWriters)
}

func closeWriters() {
	if activeFile != nil {
		_ = activeFile.Close()
		activeFile = nil
	}
	if activeConsole != nil {
		activeConsole.Close()
		activeConsole = nil
	}
}

func openWriters(cfg Config) (io.Closer, *asyncWriter, []io.Writer, error) {
	var (
		writers []io.Writer
		file    io.Closer
		console *asyncWriter
	)

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, nil, nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		file = rotator

		var w io.Writer = rotator
		if cfg.Format == FormatFixed {
			w = NewFixedFormatWriter(rotator)
		}
		writers = append(writers, w)
	}

	if cfg.Console {
		console = newAsyncWriter(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}, consoleBufferSize)
		writers = append(writers, console)
	}

	return file, console, writers, nil
}

// Logger returns the global logger.
func Logger() *zerolog.Logger {
	return &globalLogger
}

func Debug() *zerolog.Event { return globalLogger.Debug() }
func Info() *zerolog.Event  { return globalLogger.Info() }
func Warn() *zerolog.Event  { return globalLogger.Warn() }
func Error() *zerolog.Event { return globalLogger.Error() }

// Fatal logs and exits the process.
func Fatal() *zerolog.Event { return globalLogger.Fatal() }

// WithComponent returns a child logger tagged with component.
func WithComponent(component string) *zerolog.Logger {
	l := globalLogger.With().Str("component", component).Logger()
	return &l
}
