package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGlobalPath(t *testing.T) {
	got, err := GlobalPath()
	if err != nil {
		t.Fatalf("GlobalPath() error = %v", err)
	}
	if !strings.HasSuffix(got, ".layerbench") {
		t.Errorf("GlobalPath() = %v, should end with .layerbench", got)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("GlobalPath() = %v, should be absolute path", got)
	}
	homeDir, _ := os.UserHomeDir()
	if !strings.HasPrefix(got, homeDir) {
		t.Errorf("GlobalPath() = %v, should start with home directory %v", got, homeDir)
	}
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		name        string
		projectRoot string
		want        string
	}{
		{"simple path", "/home/user/project", "/home/user/project/.layerbench"},
		{"current directory", ".", ".layerbench"},
		{"nested path", "/a/b/c/d", "/a/b/c/d/.layerbench"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LocalPath(tt.projectRoot); got != tt.want {
				t.Errorf("LocalPath(%q) = %v, want %v", tt.projectRoot, got, tt.want)
			}
		})
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "results")

	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
	// Second call is a no-op.
	if err := EnsureDir(dir); err != nil {
		t.Errorf("EnsureDir() on existing dir error = %v", err)
	}
}
