package sender

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"smartfan/internal/config"
	"smartfan/internal/logger"
	"smartfan/internal/report"
)

// FileSender appends one JSON document per cycle to a rotated file.
type FileSender struct {
	writer  *lumberjack.Logger
	console io.Writer
	pretty  bool

	mu     sync.Mutex
	closed bool
}

// NewFileSender creates the target directory and opens the rotating writer.
func NewFileSender(cfg config.FileConfig) (*FileSender, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("file sender requires file_path")
	}
	if dir := filepath.Dir(cfg.FilePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	s := &FileSender{
		writer: &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		},
		pretty: cfg.Pretty,
	}
	if cfg.Console {
		s.console = os.Stdout
	}

	logger.WithComponent("file-sender").Info().
		Str("file_path", cfg.FilePath).
		Bool("console", cfg.Console).
		Msg("File sender initialized")
	return s, nil
}

// Send writes the report as one line (or an indented block when pretty).
func (s *FileSender) Send(_ context.Context, cycle *report.Cycle) error {
	data, err := encode(cycle, s.pretty)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if _, err := s.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	if s.console != nil {
		_, _ = s.console.Write(data)
	}
	return nil
}

// Close flushes and closes the file.
func (s *FileSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}
