package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"reshape/internal/cache"

	"go.uber.org/zap"
)

// ErrDeclarationNotFound is returned when a declaration can no longer be
// located in the current content of its file.
var ErrDeclarationNotFound = errors.New("declaration not found")

// Project is the editable view of a multi-file source tree. Parsed files are
// held in a SourceFileCache; edits replace a file's snapshot in memory and are
// written to disk by Save.
type Project struct {
	root  string
	fs    *cache.FileSystemCache
	files *cache.SourceFileCache[*File]
	log   *zap.Logger

	mu    sync.Mutex
	order []string
	known map[string]bool
	dirty map[string]bool
	// created holds files that exist only in memory until saved.
	created map[string]bool
}

// NewProject creates a project rooted at root.
func NewProject(root string, fs *cache.FileSystemCache, log *zap.Logger) *Project {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Project{
		root:    root,
		fs:      fs,
		files:   cache.NewSourceFileCache[*File](),
		log:     log,
		known:   make(map[string]bool),
		dirty:   make(map[string]bool),
		created: make(map[string]bool),
	}
}

// Root returns the absolute project root.
func (p *Project) Root() string {
	return p.root
}

// Abs resolves path against the project root.
func (p *Project) Abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(p.root, path)
}

// Rel returns path relative to the project root, using forward slashes.
func (p *Project) Rel(path string) string {
	rel, err := filepath.Rel(p.root, p.Abs(path))
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// Load parses path, or returns the cached snapshot.
func (p *Project) Load(path string) (*File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load(path)
}

// LoadAll loads every path, continuing past failures.
func (p *Project) LoadAll(paths []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for _, path := range paths {
		if _, err := p.load(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Files returns every loaded file in load order.
func (p *Project) Files() []*File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadedFiles()
}

// Reload discards the cached and unsaved state of path and parses it again
// from disk.
func (p *Project) Reload(path string) (*File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	abs := p.Abs(path)
	p.fs.Invalidate(abs)
	p.files.Invalidate(abs)
	delete(p.dirty, abs)
	return p.load(abs)
}

// Create adds an empty file at path that exists only in memory until it is
// saved. It fails when path already exists on disk or in the project.
func (p *Project) Create(path string) (*File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	abs := p.Abs(path)
	if p.known[abs] || p.fs.Exists(abs) {
		return nil, fmt.Errorf("%s already exists", p.Rel(abs))
	}
	f, err := Parse(context.Background(), abs, []byte{})
	if err != nil {
		return nil, err
	}
	p.created[abs] = true
	p.commit(f)
	return f, nil
}

// Discard drops every unsaved edit. The affected files are reparsed from disk
// on next access; files created in memory are forgotten.
func (p *Project) Discard() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out, kept []string
	for _, path := range p.order {
		if !p.dirty[path] {
			kept = append(kept, path)
			continue
		}
		p.fs.Invalidate(path)
		p.files.Invalidate(path)
		delete(p.dirty, path)
		out = append(out, path)
		if p.created[path] {
			delete(p.created, path)
			delete(p.known, path)
			continue
		}
		kept = append(kept, path)
	}
	p.order = kept
	return out
}

// Changed tells the project that path changed outside of it. Unsaved edits
// to path are kept; otherwise the next access reparses from disk.
func (p *Project) Changed(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	abs := p.Abs(path)
	if p.dirty[abs] {
		return
	}
	p.fs.Invalidate(abs)
	p.files.MarkModified(abs)
}

// Serialize returns the current text of path.
func (p *Project) Serialize(path string) (string, error) {
	f, err := p.Load(path)
	if err != nil {
		return "", err
	}
	return string(f.Content), nil
}

// Dirty lists files with unsaved edits in load order.
func (p *Project) Dirty() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, path := range p.order {
		if p.dirty[path] {
			out = append(out, path)
		}
	}
	return out
}

// Save persists the given files if they carry unsaved edits and returns the
// paths actually written.
func (p *Project) Save(paths ...string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var saved []string
	for _, path := range paths {
		abs := p.Abs(path)
		if !p.dirty[abs] {
			continue
		}
		if err := p.persist(abs); err != nil {
			return saved, err
		}
		saved = append(saved, abs)
	}
	return saved, nil
}

// SaveAll persists every file with unsaved edits.
func (p *Project) SaveAll() ([]string, error) {
	return p.Save(p.Dirty()...)
}

func (p *Project) persist(abs string) error {
	f, ok := p.files.Peek(abs)
	if !ok {
		return fmt.Errorf("no snapshot for %s", abs)
	}
	if err := p.fs.WriteFile(abs, f.Content); err != nil {
		return err
	}
	p.files.MarkModified(abs)
	delete(p.dirty, abs)
	delete(p.created, abs)
	p.log.Debug("persisted file", zap.String("path", p.Rel(abs)), zap.Int("bytes", len(f.Content)))
	return nil
}

func (p *Project) load(path string) (*File, error) {
	abs := p.Abs(path)
	f, err := p.files.Get(abs, p.parseFromDisk)
	if err != nil {
		return nil, err
	}
	if !p.known[abs] {
		p.known[abs] = true
		p.order = append(p.order, abs)
	}
	return f, nil
}

func (p *Project) parseFromDisk(path string) (*File, []byte, error) {
	content, err := p.fs.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	f, err := Parse(context.Background(), path, content)
	if err != nil {
		return nil, nil, err
	}
	return f, content, nil
}

func (p *Project) loadedFiles() []*File {
	out := make([]*File, 0, len(p.order))
	for _, path := range p.order {
		f, err := p.load(path)
		if err != nil {
			p.log.Warn("failed to load file", zap.String("path", path), zap.Error(err))
			continue
		}
		out = append(out, f)
	}
	return out
}

// commit replaces the in-memory snapshot of a file.
func (p *Project) commit(f *File) {
	p.files.Put(f.Path, f, f.Content)
	p.dirty[f.Path] = true
	if !p.known[f.Path] {
		p.known[f.Path] = true
		p.order = append(p.order, f.Path)
	}
}

// current re-finds d in the latest snapshot of its file.
func (p *Project) current(d *Declaration) (*File, *Declaration, error) {
	f, err := p.load(d.Path)
	if err != nil {
		return nil, nil, err
	}
	var best *Declaration
	for _, c := range f.Find(d.Kind, d.Name) {
		if !sameParent(c.Parent, d.Parent) {
			continue
		}
		if best == nil || abs(c.Line-d.Line) < abs(best.Line-d.Line) {
			best = c
		}
	}
	if best == nil {
		return f, nil, fmt.Errorf("%w: %s %s in %s", ErrDeclarationNotFound, d.Kind, d.Name, p.Rel(d.Path))
	}
	return f, best, nil
}

// ResolveSpecifier maps a relative module specifier used in from to a file
// path. Bare package specifiers and unresolvable paths yield "".
func (p *Project) ResolveSpecifier(from, spec string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolve(from, spec)
}

func (p *Project) resolve(from, spec string) string {
	if !IsRelativeSpecifier(spec) {
		return ""
	}
	base := filepath.Join(filepath.Dir(p.Abs(from)), filepath.FromSlash(spec))

	var candidates []string
	if ext := strings.ToLower(filepath.Ext(base)); Supported(base) {
		candidates = append(candidates, base)
		if ext == ".js" || ext == ".jsx" || ext == ".mjs" || ext == ".cjs" {
			stem := strings.TrimSuffix(base, filepath.Ext(base))
			candidates = append(candidates, stem+".ts", stem+".tsx", stem+".mts", stem+".cts")
		}
	}
	for _, ext := range ResolutionExtensions {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range ResolutionExtensions {
		candidates = append(candidates, filepath.Join(base, "index"+ext))
	}

	for _, c := range candidates {
		if p.known[c] || p.fs.IsFile(c) {
			return c
		}
	}
	return ""
}

// IsRelativeSpecifier reports whether spec points into the project rather
// than at a package.
func IsRelativeSpecifier(spec string) bool {
	return spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// Specifier computes the module specifier that from should use to import
// to. style is an existing specifier whose extension convention is kept.
func Specifier(from, to, style string) string {
	rel, err := filepath.Rel(filepath.Dir(from), to)
	if err != nil {
		rel = to
	}
	rel = filepath.ToSlash(rel)

	styleExt := strings.ToLower(filepath.Ext(style))
	toExt := filepath.Ext(rel)
	switch {
	case styleExt == "" || !Supported("x"+styleExt):
		rel = strings.TrimSuffix(rel, toExt)
	case styleExt == ".js" && (toExt == ".ts" || toExt == ".tsx"):
		rel = strings.TrimSuffix(rel, toExt) + ".js"
	}

	if !strings.HasPrefix(rel, "../") && !strings.HasPrefix(rel, "./") {
		rel = "./" + rel
	}
	return rel
}

func sameParent(a, b *Parent) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Name == b.Name && a.Kind == b.Kind
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
