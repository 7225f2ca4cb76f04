package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestInspector_Inspect(t *testing.T) {
	dir := t.TempDir()
	regular := filepath.Join(dir, "admin.2026-03-14.tar")
	if err := os.WriteFile(regular, []byte("backup-bytes"), 0600); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.tar")
	if err := os.WriteFile(empty, nil, 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		wantSize int64
		wantErr  bool
	}{
		{name: "regular file", path: regular, wantSize: 12},
		{name: "empty file is still inspectable", path: empty, wantSize: 0},
		{name: "missing file", path: filepath.Join(dir, "absent.tar"), wantErr: true},
		{name: "directory", path: dir, wantErr: true},
	}

	inspector := NewInspector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := inspector.Inspect(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Inspect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if src.Size != tt.wantSize || src.Path != tt.path {
				t.Errorf("Inspect() = %+v, want size %d", src, tt.wantSize)
			}
		})
	}
}

func TestInspector_ReadOnlyFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission checks")
	}
	path := filepath.Join(t.TempDir(), "readonly.tar")
	if err := os.WriteFile(path, []byte("x"), 0400); err != nil {
		t.Fatal(err)
	}

	_, err := NewInspector().Inspect(path)
	if !errors.Is(err, os.ErrPermission) {
		t.Errorf("Inspect() error = %v, want permission error", err)
	}
}

func TestInspector_Remove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.tar")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := NewInspector().Remove(path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still exists after Remove()")
	}
}
