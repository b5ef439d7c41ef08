// Package program implements the project-wide file registry of spec.md
// §4.10: a singleton mapping absolute paths to the model.Model already
// open for them, so importing the same file twice returns the existing
// Model instead of re-reading and re-parsing it.
//
// Grounded on original_source/src/forscape_program.h/.cpp.
package program

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	homedir "github.com/mitchellh/go-homedir"
	"golang.org/x/sync/semaphore"

	"github.com/shadowCow/mathdoc/codeerr"
	"github.com/shadowCow/mathdoc/model"
	"github.com/shadowCow/mathdoc/serial"
)

// fileExtension is the on-disk extension openFromRelativePathAutoExtension
// tries when an import path names no extension of its own. The original
// tries ".txt"; this repository's documents are ".math" files.
const fileExtension = ".math"

// Program is the project-wide open-file registry. The zero value is not
// usable; build one with New.
type Program struct {
	mu          sync.Mutex
	sourceFiles map[string]model.Model
	projectPath []string

	sem *semaphore.Weighted
}

var (
	instance     *Program
	instanceOnce sync.Once
)

// Instance returns the process-wide Program, constructing it on first
// use the way the original's Program::instance() lazily new's its
// singleton.
func Instance() *Program {
	instanceOnce.Do(func() {
		instance = New(".")
	})
	return instance
}

// New builds a Program rooted at root, with root itself as the sole
// initial project search path. AddProjectPath extends the search list.
func New(root string) *Program {
	return &Program{
		sourceFiles: make(map[string]model.Model),
		projectPath: []string{root},
		sem:         semaphore.NewWeighted(1),
	}
}

// AddProjectPath appends a directory (expanding a leading ~) to the
// ordered list openFromRelativePath searches, replacing the original's
// hardcoded `../test/interpreter_scripts/in`-style entries with an
// explicit mechanism (noted as a DO THIS in forscape_program.h).
func (p *Program) AddProjectPath(dir string) error {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.projectPath = append(p.projectPath, expanded)
	return nil
}

// SetEntryPoint clears the registry and seeds it with the program's
// single entry-point file, mirroring setProgramEntryPoint.
func (p *Program) SetEntryPoint(path string, m model.Model) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sourceFiles = map[string]model.Model{path: m}
}

// ResetImports clears every open file but the entry point is not
// special-cased here: a full reset (the lifecycle a fresh compile of
// the project needs between runs) just empties the registry, the Go
// equivalent of freeFileMemory() without a manual delete loop since
// model.Model ownership is GC-managed.
func (p *Program) ResetImports() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sourceFiles = make(map[string]model.Model)
}

// OpenAbsolutePath opens (or returns the already-open) Model at path. A
// non-nil Code reports why no Model could be produced; a zero Code
// (never a valid member of codeerr.Code, whose iota starts at 1) means
// the open succeeded and m is valid.
func (p *Program) OpenAbsolutePath(path string) (m model.Model, code codeerr.Code) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, codeerr.CodeFileNotFound
	}

	p.mu.Lock()
	if existing, ok := p.sourceFiles[abs]; ok {
		p.mu.Unlock()
		return existing, 0
	}
	p.mu.Unlock()

	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, codeerr.CodeFileNotFound
	}

	// The original strips stray CR bytes that aren't part of a serial
	// OPEN marker before validating; os.ReadFile already hands back raw
	// bytes, so the same normalization happens here before the split.
	text := normalizeLineEndings(string(raw))
	if !serial.IsValidSerial(text) {
		return nil, codeerr.CodeFileCorrupted
	}

	lines := splitLines(text)
	newModel := model.FromLines(abs, lines)

	p.mu.Lock()
	p.sourceFiles[abs] = newModel
	p.mu.Unlock()

	return newModel, 0
}

// OpenRelativePath searches the project path list in order, trying each
// candidate file_name has an explicit extension or not, mirroring
// openFromRelativePathSpecifiedExtension/AutoExtension.
func (p *Program) OpenRelativePath(fileName string) (model.Model, codeerr.Code) {
	p.mu.Lock()
	paths := append([]string(nil), p.projectPath...)
	p.mu.Unlock()

	hasExt := filepath.Ext(fileName) != ""
	for _, dir := range paths {
		candidate := filepath.Join(dir, fileName)
		if hasExt {
			if m, code := p.OpenAbsolutePath(candidate); code == 0 {
				return m, 0
			}
			continue
		}
		if m, code := p.OpenAbsolutePath(candidate + fileExtension); code == 0 {
			return m, 0
		}
	}
	return nil, codeerr.CodeFileNotFound
}

// IsOpen reports whether path is already registered, the check an
// importing file uses to detect SELF_IMPORT before calling Open at all.
func (p *Program) IsOpen(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sourceFiles[abs]
	return ok
}

// AcquireRun blocks until the single interpreter slot this Program
// manages is free, then returns a release function. A Program runs at
// most one interpreter at a time (spec.md §4.10's "one interpreter
// thread per Program").
func (p *Program) AcquireRun() func() {
	_ = p.sem.Acquire(context.Background(), 1)
	return func() { p.sem.Release(1) }
}

// NewRunID mints a correlation id for one Run, used to tag log lines
// and diagnostics belonging to the same execution.
func NewRunID() string {
	return uuid.NewString()
}

func normalizeLineEndings(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\r' {
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}
