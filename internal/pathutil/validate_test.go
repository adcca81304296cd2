package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestValidatePath(t *testing.T) {
	base := t.TempDir()
	allowed := filepath.Join(base, "runs")
	other := filepath.Join(base, "other")
	for _, d := range []string{allowed, other} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		path    string
		dirs    []string
		wantErr bool
	}{
		{"inside", filepath.Join(allowed, "lwm2m.json"), []string{allowed}, false},
		{"nested, not yet created", filepath.Join(allowed, "a", "b", "matter.json"), []string{allowed}, false},
		{"the directory itself", allowed, []string{allowed}, false},
		{"dot-dot escape", filepath.Join(allowed, "..", "other", "x.json"), []string{allowed}, true},
		{"sibling with shared prefix", filepath.Join(base, "runs2", "x.json"), []string{allowed}, true},
		{"second allowed dir", filepath.Join(other, "x.json"), []string{allowed, other}, false},
		{"null byte", filepath.Join(allowed, "x\x00.json"), []string{allowed}, true},
		{"empty", "", []string{allowed}, true},
		{"no dirs", filepath.Join(allowed, "x.json"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, tt.dirs...)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePathSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	base := t.TempDir()
	allowed := filepath.Join(base, "runs")
	outside := filepath.Join(base, "outside")
	for _, d := range []string{allowed, outside} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	link := filepath.Join(allowed, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatalf("Symlink() error = %v", err)
	}

	if err := ValidatePath(filepath.Join(link, "x.json"), allowed); err == nil {
		t.Error("symlink pointing outside the allowed dir should be rejected")
	}
}

func TestJoin(t *testing.T) {
	dir := t.TempDir()

	got, err := Join(dir, "lwm2m.json")
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if got != filepath.Join(dir, "lwm2m.json") {
		t.Errorf("Join() = %q", got)
	}

	for _, name := range []string{"", "../escape.json", "a/b.json", `a\b.json`, "..", "."} {
		if _, err := Join(dir, name); err == nil {
			t.Errorf("Join(%q) should fail", name)
		}
	}
}

func TestRedactPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"results.db", "results.db"},
		{"/results.db", "results.db"},
		{"/home/user/.layerbench/results.db", ".../.layerbench/results.db"},
	}
	for _, tt := range tests {
		if got := RedactPath(tt.in); got != tt.want {
			t.Errorf("RedactPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
