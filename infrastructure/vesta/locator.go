// Package vesta locates per-user backups produced by the Vesta control panel,
// generating today's archive when it is missing.
package vesta

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gdrive-backup/domain/backup"

	"go.uber.org/zap"
)

// ErrBackupNotFound is returned when no archive matches after generation
var ErrBackupNotFound = errors.New("backup file not found")

// CommandRunner defines the interface for running external commands
// This allows mocking exec.Command in tests
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecCommandRunner is the production implementation using os/exec
type ExecCommandRunner struct{}

// Run executes a command, returning its combined output in the error on failure
func (r *ExecCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// Locator implements backup.Locator
type Locator struct {
	directory string
	generator string
	runner    CommandRunner
	logger    *zap.Logger
}

// LocatorOption is a functional option for configuring Locator
type LocatorOption func(*Locator)

// WithDirectory sets the directory the archives are written to
func WithDirectory(dir string) LocatorOption {
	return func(l *Locator) {
		l.directory = dir
	}
}

// WithGenerator sets the backup generation executable
func WithGenerator(path string) LocatorOption {
	return func(l *Locator) {
		l.generator = path
	}
}

// WithCommandRunner sets a custom command runner (for testing)
func WithCommandRunner(runner CommandRunner) LocatorOption {
	return func(l *Locator) {
		l.runner = runner
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) LocatorOption {
	return func(l *Locator) {
		l.logger = logger
	}
}

// NewLocator creates a new locator
func NewLocator(opts ...LocatorOption) *Locator {
	l := &Locator{
		directory: "/backup",
		generator: "/usr/local/vesta/bin/v-backup-user",
		runner:    &ExecCommandRunner{},
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Locate returns the newest archive for userID and date, running the generator first if none exists
func (l *Locator) Locate(ctx context.Context, userID string, date time.Time) (string, error) {
	if userID == "" || strings.ContainsAny(userID, "/\x00") {
		return "", fmt.Errorf("invalid user name %q", userID)
	}
	pattern := archivePattern(userID, date)

	path, err := l.newest(pattern)
	if err != nil {
		return "", err
	}
	if path != "" {
		l.logger.Info(fmt.Sprintf("We have today's backup, fileName: %s", path))
		return path, nil
	}

	l.logger.Info("Looks like we dont have a backup file, will create new one", zap.String("user", userID))
	if err := l.runner.Run(ctx, l.generator, userID); err != nil {
		return "", fmt.Errorf("%s %s failed: %w", filepath.Base(l.generator), userID, err)
	}

	path, err = l.newest(pattern)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("%w: no %s* in %s after generation", ErrBackupNotFound, pattern, l.directory)
	}

	l.logger.Info(fmt.Sprintf("Backup created, fileName: %s", path))
	return path, nil
}

// newest returns the most recently modified regular file whose name contains pattern
func (l *Locator) newest(pattern string) (string, error) {
	entries, err := os.ReadDir(l.directory)
	if err != nil {
		return "", fmt.Errorf("failed to read backup directory: %w", err)
	}

	var latestPath string
	var latestTime time.Time

	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.Contains(entry.Name(), pattern) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latestPath == "" || info.ModTime().After(latestTime) {
			latestPath = filepath.Join(l.directory, entry.Name())
			latestTime = info.ModTime()
		}
	}

	return latestPath, nil
}

// archivePattern returns the "<user>.<YYYY-MM-DD>" fragment of an archive name
func archivePattern(userID string, date time.Time) string {
	return userID + "." + date.Format("2006-01-02")
}

// Ensure Locator implements backup.Locator
var _ backup.Locator = (*Locator)(nil)
