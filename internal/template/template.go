// Package template inspects a project tree before migration: it flags
// layouts the migration cannot handle and collects the module descriptors
// the loader has to bring in.
package template

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/kingrea/modmigrate/internal/storage"
)

// FindingKind classifies template check findings.
type FindingKind string

const (
	NestedRuntime FindingKind = "runtime"
	NestedSandbox FindingKind = "sandbox"
)

// Finding is one unsupported layout.
type Finding struct {
	Path string
	Kind FindingKind
}

func (f Finding) String() string {
	return fmt.Sprintf("%s appears to be a %s solution nested into a language folder. This isn't supported at the moment.", f.Path, f.Kind)
}

var skipDirs = map[string]struct{}{
	".git":        {},
	".hg":         {},
	".svn":        {},
	".modmigrate": {},
}

// projectFiles are host project files never treated as content.
var projectFiles = map[string]struct{}{
	".mps/modules.xml":   {},
	".mps/workspace.xml": {},
}

// Check reports solutions placed in a runtime or sandbox folder below a
// language folder. Paths are relative to root.
func Check(root string) ([]Finding, error) {
	var findings []Finding
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".msd") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if kind, ok := nestedKind(strings.Split(filepath.ToSlash(rel), "/")); ok {
			findings = append(findings, Finding{Path: filepath.ToSlash(rel), Kind: kind})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("template: check %s: %w", root, err)
	}
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Kind != findings[j].Kind {
			return findings[i].Kind < findings[j].Kind
		}
		return findings[i].Path < findings[j].Path
	})
	return findings, nil
}

// nestedKind looks for languages/<at least one folder>/runtime|sandbox/ in
// the directory part of segments.
func nestedKind(segments []string) (FindingKind, bool) {
	dirs := segments[:len(segments)-1]
	for i, seg := range dirs {
		if seg != "languages" {
			continue
		}
		for j := i + 2; j < len(dirs); j++ {
			switch dirs[j] {
			case "runtime":
				return NestedRuntime, true
			case "sandbox":
				return NestedSandbox, true
			}
		}
	}
	return "", false
}

// MinePaths returns the absolute paths of every module descriptor below
// root, sorted. Version control folders, host project files and paths
// matched by root's .gitignore or by extraIgnore are skipped.
func MinePaths(root string, extraIgnore []string) ([]string, error) {
	gi, err := loadIgnore(root, extraIgnore)
	if err != nil {
		return nil, err
	}
	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if _, skip := projectFiles[rel]; skip {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if !storage.IsDescriptor(path) {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			abs = path
		}
		paths = append(paths, abs)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("template: mine %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func loadIgnore(root string, extra []string) (*ignore.GitIgnore, error) {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err == nil {
		gi, err := ignore.CompileIgnoreFileAndLines(path, extra...)
		if err != nil {
			return nil, fmt.Errorf("template: read %s: %w", path, err)
		}
		return gi, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("template: stat %s: %w", path, err)
	}
	if len(extra) == 0 {
		return nil, nil
	}
	return ignore.CompileIgnoreLines(extra...), nil
}
