package analyzers

import (
	"os"
	"path/filepath"
	"strings"
)

// skipDirs are dependency trees that never hold first-party code.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || skipDirs[name]
}

// HasFilesWithExtension looks at dir and its immediate subdirectories for a
// file ending in one of exts. Hidden and dependency directories are ignored.
func HasFilesWithExtension(dir string, exts []string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() && hasExt(entry.Name(), exts) {
			return true
		}
	}
	for _, entry := range entries {
		if !entry.IsDir() || skipDir(entry.Name()) {
			continue
		}
		sub, err := os.ReadDir(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		for _, s := range sub {
			if !s.IsDir() && hasExt(s.Name(), exts) {
				return true
			}
		}
	}
	return false
}

// HasMarker reports whether one of the named files exists at the root of dir.
func HasMarker(dir string, markers []string) bool {
	for _, m := range markers {
		if fi, err := os.Stat(filepath.Join(dir, m)); err == nil && !fi.IsDir() {
			return true
		}
	}
	return false
}

func hasExt(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
