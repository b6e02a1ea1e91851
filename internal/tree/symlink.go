package tree

import (
	"fmt"
	"path/filepath"
	"strings"
)

// resolveLink follows a symbolic link entry. A link to a directory is listed
// as that directory unless it points at the directory being listed or one of
// its ancestors, in which case it is dropped so the walk terminates. Dangling
// links stay file entries.
func (l *Lister) resolveLink(dir string, e *Entry) (bool, error) {
	target, err := l.FS.Stat(e.Path)
	if err != nil || !target.IsDir() {
		return true, nil
	}
	canonLink, err := l.canonical(e.Path)
	if err != nil {
		return false, fmt.Errorf("resolve link %s: %w", e.Path, err)
	}
	canonDir, err := l.canonical(dir)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", displayDir(dir), err)
	}
	if within(canonDir, canonLink) {
		return false, nil
	}
	e.IsDir = true
	return true, nil
}

// canonical returns the host path of p with every link resolved.
func (l *Lister) canonical(p string) (string, error) {
	return filepath.EvalSymlinks(filepath.Join(l.FS.Root(), filepath.FromSlash(p)))
}

// within reports whether p is base or lies below it.
func within(p, base string) bool {
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
