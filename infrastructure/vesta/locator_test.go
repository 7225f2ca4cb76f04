package vesta

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner records calls and optionally creates a file to simulate the generator
type mockRunner struct {
	calls      [][]string
	createFile string
	shouldFail bool
	failError  error
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) error {
	m.calls = append(m.calls, append([]string{name}, args...))
	if m.shouldFail {
		return m.failError
	}
	if m.createFile != "" {
		return os.WriteFile(m.createFile, []byte("archive"), 0600)
	}
	return nil
}

var day = time.Date(2026, 3, 14, 3, 0, 0, 0, time.UTC)

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("archive"), 0600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestLocator_ExistingBackupIsNewestMatch(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "admin.2026-03-14_03-00-01.tar"), day)
	touch(t, filepath.Join(dir, "admin.2026-03-14_05-00-01.tar"), day.Add(2*time.Hour))
	touch(t, filepath.Join(dir, "admin.2026-03-13_03-00-01.tar"), day.Add(3*time.Hour))
	touch(t, filepath.Join(dir, "other.2026-03-14_03-00-01.tar"), day.Add(4*time.Hour))
	runner := &mockRunner{}

	locator := NewLocator(WithDirectory(dir), WithCommandRunner(runner))
	path, err := locator.Locate(context.Background(), "admin", day)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "admin.2026-03-14_05-00-01.tar"), path)
	assert.Empty(t, runner.calls, "generator must not run when today's backup exists")
}

func TestLocator_GeneratesMissingBackup(t *testing.T) {
	dir := t.TempDir()
	created := filepath.Join(dir, "admin.2026-03-14_03-10-00.tar")
	runner := &mockRunner{createFile: created}

	locator := NewLocator(WithDirectory(dir), WithGenerator("/opt/bin/v-backup-user"), WithCommandRunner(runner))
	path, err := locator.Locate(context.Background(), "admin", day)
	require.NoError(t, err)

	assert.Equal(t, created, path)
	assert.Equal(t, [][]string{{"/opt/bin/v-backup-user", "admin"}}, runner.calls)
}

func TestLocator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		user   string
		runner *mockRunner
		dir    func(t *testing.T) string
		errMsg string
		is     error
	}{
		{
			name:   "generator fails",
			user:   "admin",
			runner: &mockRunner{shouldFail: true, failError: errors.New("exit status 3")},
			dir:    func(t *testing.T) string { return t.TempDir() },
			errMsg: "v-backup-user admin failed",
		},
		{
			name:   "generator produces nothing",
			user:   "admin",
			runner: &mockRunner{},
			dir:    func(t *testing.T) string { return t.TempDir() },
			is:     ErrBackupNotFound,
		},
		{
			name:   "missing directory",
			user:   "admin",
			runner: &mockRunner{},
			dir:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent") },
			errMsg: "failed to read backup directory",
		},
		{
			name:   "path in user name",
			user:   "../etc",
			runner: &mockRunner{},
			dir:    func(t *testing.T) string { return t.TempDir() },
			errMsg: "invalid user name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locator := NewLocator(WithDirectory(tt.dir(t)), WithCommandRunner(tt.runner))

			_, err := locator.Locate(context.Background(), tt.user, day)
			require.Error(t, err)
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestArchivePattern(t *testing.T) {
	assert.Equal(t, "admin.2026-03-14", archivePattern("admin", day))
}
