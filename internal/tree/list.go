package tree

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// gitDirName is never listed, at any depth.
const gitDirName = ".git"

// Entry is one listed directory child. Path is slash separated and relative
// to the filesystem root, which is also the entry's logical package path.
type Entry struct {
	Name  string
	Path  string
	IsDir bool
}

// Lister enumerates one directory tree. Listings include hidden entries,
// exclude ".git", drop entries matched by Exclude or rejected by Filter, and
// are sorted by name.
type Lister struct {
	FS      billy.Filesystem
	Exclude []gitignore.Pattern
	Filter  *LuaFilter

	matcher gitignore.Matcher
}

// NewLister returns a lister over fs.
func NewLister(fs billy.Filesystem, exclude []gitignore.Pattern, filter *LuaFilter) *Lister {
	l := &Lister{FS: fs, Exclude: exclude, Filter: filter}
	if len(exclude) > 0 {
		l.matcher = gitignore.NewMatcher(exclude)
	}
	return l
}

// ParseExcludes turns gitignore-syntax lines into patterns rooted at the tree
// root. Blank lines and comments are skipped.
func ParseExcludes(lines []string) []gitignore.Pattern {
	var patterns []gitignore.Pattern
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns
}

// List returns the children of dir ("" for the root).
func (l *Lister) List(dir string) ([]Entry, error) {
	readDir := dir
	if readDir == "" {
		readDir = "."
	}
	infos, err := l.FS.ReadDir(readDir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", displayDir(dir), err)
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if name == gitDirName || name == "." || name == ".." {
			continue
		}
		e := Entry{Name: name, Path: path.Join(dir, name), IsDir: info.IsDir()}
		if info.Mode()&os.ModeSymlink != 0 {
			keep, err := l.resolveLink(dir, &e)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
		}
		if l.excluded(e) {
			continue
		}
		if l.Filter != nil {
			keep, err := l.Filter.Keep(e)
			if err != nil {
				return nil, fmt.Errorf("filter %s: %w", e.Path, err)
			}
			if !keep {
				continue
			}
		}
		entries = append(entries, e)
	}
	// byte order, the same order compare walks the two listings in
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (l *Lister) excluded(e Entry) bool {
	if l.matcher == nil {
		if len(l.Exclude) == 0 {
			return false
		}
		l.matcher = gitignore.NewMatcher(l.Exclude)
	}
	return l.matcher.Match(strings.Split(e.Path, "/"), e.IsDir)
}

func displayDir(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}
