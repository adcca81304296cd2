// Package pathutil keeps generated files inside the directories they were
// meant for.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RedactPath shortens a path to .../<parent>/<base> for error messages.
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// ValidatePath checks that path resolves inside one of dirs. Symlinks are
// resolved on the deepest existing ancestor, so the file itself need not
// exist yet.
func ValidatePath(path string, dirs ...string) error {
	if path == "" {
		return fmt.Errorf("path validation failed: path is empty")
	}
	if len(dirs) == 0 {
		return fmt.Errorf("path validation failed: no allowed directories")
	}
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("path validation failed: path contains null byte")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	parent, err := resolveExisting(filepath.Dir(abs))
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	resolved := filepath.Join(parent, filepath.Base(abs))

	for _, d := range dirs {
		dirAbs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			continue
		}
		dirResolved, err := resolveExisting(dirAbs)
		if err != nil {
			continue
		}
		if within(resolved, dirResolved) {
			return nil
		}
	}
	return fmt.Errorf("path validation failed: %q is outside allowed directories", RedactPath(abs))
}

// Join joins name onto dir and rejects results that escape dir, such as a
// protocol identity of "../x" used as a file name.
func Join(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	path := filepath.Join(dir, name)
	if err := ValidatePath(path, dir); err != nil {
		return "", err
	}
	return path, nil
}

// resolveExisting evaluates symlinks on the deepest ancestor of dir that
// exists and re-appends the missing tail.
func resolveExisting(dir string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved, nil
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve %s", RedactPath(dir))
	}
	resolvedParent, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

func within(path, base string) bool {
	return path == base || strings.HasPrefix(path, base+string(os.PathSeparator))
}
