// Package storage persists modules as YAML documents: one descriptor per
// module plus one file per model under the module's models/ folder.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/modmigrate/internal/project"
)

var (
	// ErrUnsupportedKind is returned when a module kind cannot be copied.
	ErrUnsupportedKind = errors.New("storage: unsupported module kind")
	// ErrExists is returned when a copy or rename target is already taken.
	ErrExists = errors.New("storage: target already exists")
)

const (
	modelsDir       = "models"
	modelFileSuffix = ".model.yaml"
	defaultCacheLen = 256
)

var extensions = map[project.Kind]string{
	project.KindLanguage:  ".mpl",
	project.KindSolution:  ".msd",
	project.KindDevkit:    ".devkit",
	project.KindGenerator: ".mpg",
}

var kindDirs = map[project.Kind]string{
	project.KindLanguage:  "languages",
	project.KindSolution:  "solutions",
	project.KindDevkit:    "devkits",
	project.KindGenerator: "generators",
}

// ExtensionFor returns the descriptor extension used for kind.
func ExtensionFor(kind project.Kind) (string, bool) {
	ext, ok := extensions[kind]
	return ext, ok
}

// KindForExtension maps a descriptor extension back to a module kind.
func KindForExtension(ext string) (project.Kind, bool) {
	lower := strings.ToLower(ext)
	for kind, candidate := range extensions {
		if candidate == lower {
			return kind, true
		}
	}
	return "", false
}

// IsDescriptor reports whether path names a module descriptor file.
func IsDescriptor(path string) bool {
	_, ok := KindForExtension(filepath.Ext(path))
	return ok
}

type cachedModel struct {
	modTime time.Time
	size    int64
	doc     modelDocument
}

// Store reads and writes module documents below a project root.
type Store struct {
	root   string
	models *lru.Cache[string, cachedModel]
}

// Option customizes a Store.
type Option func(*storeOptions)

type storeOptions struct {
	cacheLen int
}

// WithCacheSize sets how many decoded model documents are kept in memory.
func WithCacheSize(n int) Option {
	return func(o *storeOptions) {
		if n > 0 {
			o.cacheLen = n
		}
	}
}

// New builds a store rooted at the project directory.
func New(root string, opts ...Option) (*Store, error) {
	o := storeOptions{cacheLen: defaultCacheLen}
	for _, opt := range opts {
		opt(&o)
	}
	cache, err := lru.New[string, cachedModel](o.cacheLen)
	if err != nil {
		return nil, fmt.Errorf("storage: model cache: %w", err)
	}
	return &Store{root: root, models: cache}, nil
}

// Root returns the project directory.
func (s *Store) Root() string {
	return s.root
}

// DefaultPath returns where a module named name of kind is stored when it
// has no location yet: <root>/<kind dir>/<name>/<name><ext>.
func (s *Store) DefaultPath(name string, kind project.Kind) (string, error) {
	ext, ok := ExtensionFor(kind)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	return filepath.Join(s.root, kindDirs[kind], name, name+ext), nil
}

// Load reads the module whose descriptor lives at path, including all of
// its models.
func (s *Store) Load(path string) (*project.Module, error) {
	kind, ok := KindForExtension(filepath.Ext(path))
	if !ok {
		return nil, fmt.Errorf("storage: %s is not a module descriptor", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("storage: descriptor %s is empty", path)
	}
	var doc moduleDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", path, err)
	}
	if doc.Kind == "" {
		doc.Kind = kind
	}
	if doc.Kind != kind {
		return nil, fmt.Errorf("storage: %s declares kind %s but has a %s extension", path, doc.Kind, kind)
	}
	m := &project.Module{
		Name:         strings.TrimSpace(doc.Name),
		ID:           doc.ID,
		Kind:         doc.Kind,
		Path:         filepath.Clean(path),
		Dependencies: doc.Dependencies,
		Runtime:      doc.Runtime,
		Schema:       doc.Schema,
	}
	if m.ID == "" {
		m.ID = project.NewModuleID()
	}
	dir := filepath.Dir(path)
	for _, rel := range doc.Models {
		model, err := s.loadModel(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("storage: module %s: %w", m.Name, err)
		}
		if err := m.AddModel(model); err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", path, err)
	}
	return m, nil
}

func (s *Store) loadModel(path string) (*project.Model, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if cached, ok := s.models.Get(path); ok && cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
		return decodeModel(cached.doc)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc modelDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	model, err := decodeModel(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.models.Add(path, cachedModel{modTime: info.ModTime(), size: info.Size(), doc: doc})
	return model, nil
}

// Save writes the module descriptor and every model file. Modules without a
// location get their default path.
func (s *Store) Save(m *project.Module) error {
	if m.Path == "" {
		path, err := s.DefaultPath(m.Name, m.Kind)
		if err != nil {
			return err
		}
		m.Path = path
	}
	dir := filepath.Dir(m.Path)
	if err := os.MkdirAll(filepath.Join(dir, modelsDir), 0o755); err != nil {
		return fmt.Errorf("storage: ensure %s: %w", dir, err)
	}
	doc := moduleDocument{
		Name:         m.Name,
		ID:           m.ID,
		Kind:         m.Kind,
		Dependencies: m.Dependencies,
		Runtime:      m.Runtime,
		Schema:       m.Schema,
	}
	for _, model := range m.Models() {
		rel := filepath.ToSlash(filepath.Join(modelsDir, modelFileName(model.Name())))
		if err := s.writeYAML(filepath.Join(dir, filepath.FromSlash(rel)), encodeModel(model)); err != nil {
			return err
		}
		doc.Models = append(doc.Models, rel)
	}
	return s.writeYAML(m.Path, doc)
}

func (s *Store) writeYAML(path string, value any) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	s.models.Remove(path)
	return nil
}

// Copy writes a full copy of m under name next to the original and returns
// it. The copy has a fresh module id and fresh model ids; node ids are kept.
// Only languages and solutions can be copied.
func (s *Store) Copy(m *project.Module, name string) (*project.Module, error) {
	if m.Kind != project.KindLanguage && m.Kind != project.KindSolution {
		return nil, fmt.Errorf("%w: %s is a %q module", ErrUnsupportedKind, m.Name, m.Kind)
	}
	target, err := s.siblingPath(m, name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Dir(target)); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, filepath.Dir(target))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage: stat %s: %w", target, err)
	}
	clone := m.Clone(name)
	clone.Path = target
	if err := s.Save(clone); err != nil {
		_ = os.RemoveAll(filepath.Dir(target))
		return nil, err
	}
	return clone, nil
}

// Delete removes the module's folder from disk.
func (s *Store) Delete(m *project.Module) error {
	if m.Path == "" {
		return nil
	}
	dir := filepath.Dir(m.Path)
	s.evict(dir)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("storage: delete %s: %w", dir, err)
	}
	return nil
}

// Rename moves the module's folder and descriptor to name and updates m.
func (s *Store) Rename(m *project.Module, name string) error {
	if m.Path == "" {
		m.Name = name
		return s.Save(m)
	}
	target, err := s.siblingPath(m, name)
	if err != nil {
		return err
	}
	oldDir := filepath.Dir(m.Path)
	newDir := filepath.Dir(target)
	if _, err := os.Stat(newDir); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, newDir)
	}
	s.evict(oldDir)
	if err := os.Rename(oldDir, newDir); err != nil {
		return fmt.Errorf("storage: rename %s: %w", oldDir, err)
	}
	stale := filepath.Join(newDir, filepath.Base(m.Path))
	m.Name = name
	m.Path = target
	if stale != target {
		if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: remove %s: %w", stale, err)
		}
	}
	return s.Save(m)
}

// Replace moves m into the folder of name while that folder still holds a
// previous owner, as happens when deleting the previous owner failed. Its
// descriptors and model files are removed first, m is saved in its place and
// m's old folder is removed.
func (s *Store) Replace(m *project.Module, name string) error {
	if m.Path == "" {
		return s.Rename(m, name)
	}
	target, err := s.siblingPath(m, name)
	if err != nil {
		return err
	}
	oldDir := filepath.Dir(m.Path)
	newDir := filepath.Dir(target)
	if oldDir == newDir {
		m.Name = name
		return s.Save(m)
	}
	s.evict(newDir)
	if err := clearModuleFiles(newDir); err != nil {
		return err
	}
	m.Name = name
	m.Path = target
	if err := s.Save(m); err != nil {
		return err
	}
	s.evict(oldDir)
	if err := os.RemoveAll(oldDir); err != nil {
		return fmt.Errorf("storage: remove %s: %w", oldDir, err)
	}
	return nil
}

// clearModuleFiles removes the descriptors and the models folder of dir.
// A missing dir is fine.
func clearModuleFiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !IsDescriptor(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: remove %s: %w", path, err)
		}
	}
	models := filepath.Join(dir, modelsDir)
	if err := os.RemoveAll(models); err != nil {
		return fmt.Errorf("storage: remove %s: %w", models, err)
	}
	return nil
}

func (s *Store) siblingPath(m *project.Module, name string) (string, error) {
	ext, ok := ExtensionFor(m.Kind)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, m.Kind)
	}
	if m.Path == "" {
		return s.DefaultPath(name, m.Kind)
	}
	parent := filepath.Dir(filepath.Dir(m.Path))
	return filepath.Join(parent, name, name+ext), nil
}

func (s *Store) evict(dir string) {
	prefix := filepath.Clean(dir) + string(filepath.Separator)
	for _, key := range s.models.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.models.Remove(key)
		}
	}
}

func modelFileName(name string) string {
	replacer := strings.NewReplacer("/", "_", `\`, "_", ":", "_")
	return replacer.Replace(name) + modelFileSuffix
}
