package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// resolveClientDir picks the directory served as static files. An explicit
// CLIENT_DIR must exist. Without one, a "client" directory next to the working
// directory or the executable is used; static serving stays off when neither
// has one.
func resolveClientDir(configured string) (string, error) {
	if configured != "" {
		info, err := os.Stat(configured)
		if err != nil {
			return "", fmt.Errorf("resolve client assets: %w", err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("resolve client assets: %s is not a directory", configured)
		}
		return filepath.Abs(configured)
	}

	if cwd, err := os.Getwd(); err == nil {
		if dir, ok := resolveClientDirFrom(cwd); ok {
			return dir, nil
		}
	}
	if exePath, err := os.Executable(); err == nil {
		if dir, ok := resolveClientDirFrom(filepath.Dir(exePath)); ok {
			return dir, nil
		}
	}
	return "", nil
}

func resolveClientDirFrom(base string) (string, bool) {
	candidates := []string{
		filepath.Join(base, "client"),
		filepath.Join(base, "..", "client"),
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || !info.IsDir() {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		return abs, true
	}
	return "", false
}
