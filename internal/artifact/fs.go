// Package artifact provides read-only access to the files a project has
// already produced: configs, logs and generated reports.
//
// Nothing in this package writes to the analyzed tree.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/time/rate"
)

// DefaultMaxBytes caps how much of a single artifact is read.
const DefaultMaxBytes = 512 * 1024

// FS is the filesystem collaborator experts read through.
// All paths are slash-separated and relative to Root.
type FS interface {
	// Root returns the absolute project root.
	Root() string

	// Read returns the (possibly truncated) contents of an artifact.
	// Failures are reported as *Error wrapping ErrUnreadable.
	Read(ctx context.Context, rel string) ([]byte, error)

	// Exists reports whether the path exists, file or directory.
	Exists(rel string) bool

	// IsDir reports whether the path is an existing directory.
	IsDir(rel string) bool

	// Glob matches a doublestar pattern ("**" crosses directories)
	// and returns sorted relative paths.
	Glob(pattern string) ([]string, error)
}

// OSFS reads artifacts from the local disk.
type OSFS struct {
	root     string
	fsys     fs.FS
	maxBytes int64
	exclude  []string
	limiter  *rate.Limiter
}

// Option configures an OSFS.
type Option func(*OSFS)

// WithMaxBytes overrides DefaultMaxBytes.
func WithMaxBytes(n int64) Option {
	return func(o *OSFS) {
		if n > 0 {
			o.maxBytes = n
		}
	}
}

// WithExclude drops glob results matching any of the patterns.
func WithExclude(patterns ...string) Option {
	return func(o *OSFS) {
		o.exclude = append(o.exclude, patterns...)
	}
}

// WithReadRate throttles Read to perSecond reads. Zero disables throttling.
func WithReadRate(perSecond float64) Option {
	return func(o *OSFS) {
		if perSecond > 0 {
			o.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewOSFS creates an OSFS rooted at root. A missing root is not an error;
// it simply contains no artifacts.
func NewOSFS(root string, opts ...Option) (*OSFS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	o := &OSFS{
		root:     abs,
		fsys:     os.DirFS(abs),
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Root implements FS.
func (o *OSFS) Root() string {
	return o.root
}

// Read implements FS.
func (o *OSFS) Read(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, Unreadable(rel, err)
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, Unreadable(rel, err)
		}
	}

	f, err := o.fsys.Open(clean(rel))
	if err != nil {
		return nil, Unreadable(rel, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, o.maxBytes))
	if err != nil {
		return nil, Unreadable(rel, err)
	}
	return data, nil
}

// Exists implements FS.
func (o *OSFS) Exists(rel string) bool {
	_, err := fs.Stat(o.fsys, clean(rel))
	return err == nil
}

// IsDir implements FS.
func (o *OSFS) IsDir(rel string) bool {
	info, err := fs.Stat(o.fsys, clean(rel))
	return err == nil && info.IsDir()
}

// Glob implements FS.
func (o *OSFS) Glob(pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q", pattern)
	}

	matches, err := doublestar.Glob(o.fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}

	out := matches[:0]
	for _, m := range matches {
		if skipPath(m) || o.excluded(m) {
			continue
		}
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (o *OSFS) excluded(rel string) bool {
	for _, pat := range o.exclude {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
		// A bare directory pattern also excludes everything under it.
		if ok, _ := doublestar.Match(strings.TrimSuffix(pat, "/")+"/**", rel); ok {
			return true
		}
	}
	return false
}

// Files filters paths down to regular files.
func Files(fsys FS, paths []string) []string {
	var out []string
	for _, p := range paths {
		if fsys.Exists(p) && !fsys.IsDir(p) {
			out = append(out, p)
		}
	}
	return out
}

// IsLikelyText reports whether b looks like UTF-8 text.
func IsLikelyText(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	if bytes.IndexByte(b, 0x00) >= 0 {
		return false
	}
	return utf8.Valid(b)
}

// skipPath drops results under directories that never hold project artifacts.
func skipPath(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		switch seg {
		case ".git", "node_modules", "vendor", ".venv", "venv", "__pycache__", ".idea", ".vscode":
			return true
		}
	}
	return false
}

func clean(rel string) string {
	rel = path.Clean(filepath.ToSlash(rel))
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return "."
	}
	return rel
}
