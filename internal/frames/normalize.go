package frames

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"codemap/internal/platform"
)

// ErrUnsupportedFrame is returned for frames no matcher can use.
var ErrUnsupportedFrame = errors.New("unsupported frame")

// straightPathPrefix matches "./", "../" and "scheme:///" leads, in any
// combination ("app:///../").
var straightPathPrefix = regexp.MustCompile(`^(?:[a-zA-Z][a-zA-Z0-9+.-]*:///|\.\.?/)+`)

// secondLevelLabels are generic labels under a two-letter country TLD
// ("uk.co.example").
var secondLevelLabels = map[string]bool{
	"ac": true, "co": true, "com": true, "edu": true, "go": true,
	"gov": true, "ne": true, "net": true, "or": true, "org": true,
}

// Info is a normalized frame.
type Info struct {
	Frame Frame
	// Raw is the path exactly as sent. Roots are derived from it.
	Raw string
	// Path is the slash-separated path used for matching.
	Path string
	// Module is the dotted module with any "$" suffix removed.
	Module string
	// ModuleRoot is the directory form of the package prefix ("com/example/").
	ModuleRoot string
	Extension  string
}

// Basename returns the last path segment.
func (i Info) Basename() string {
	return path.Base(i.Path)
}

// Normalize converts f into its matching form for the platform. It returns
// ErrUnsupportedFrame (wrapped) when f cannot be matched.
func Normalize(cfg platform.Config, f Frame) (Info, error) {
	if cfg.Kind == platform.ModuleBased {
		return normalizeModule(cfg, f)
	}
	return normalizePath(cfg, f)
}

func normalizePath(cfg platform.Config, f Frame) (Info, error) {
	raw := f.Filename
	if raw == "" {
		raw = f.AbsPath
	}
	if raw == "" || raw[0] == '[' || raw[0] == '<' || strings.Contains(raw, " ") {
		return Info{}, unsupported("path %q", raw)
	}

	p := strings.ReplaceAll(raw, "\\", "/")
	if !strings.Contains(p, "/") {
		return Info{}, unsupported("path %q has no directory", raw)
	}
	ext := extension(p)
	if ext == "" {
		return Info{}, unsupported("path %q has no extension", raw)
	}
	if !cfg.SupportsExtension(ext) {
		return Info{}, unsupported("extension %q", ext)
	}

	if hasDriveLetter(p) {
		p = p[2:]
	}
	p = strings.TrimPrefix(p, "/")
	p = straightPathPrefix.ReplaceAllString(p, "")
	if p == "" || strings.HasSuffix(p, "/") {
		return Info{}, unsupported("path %q", raw)
	}

	return Info{Frame: f, Raw: raw, Path: p, Extension: ext}, nil
}

func normalizeModule(cfg platform.Config, f Frame) (Info, error) {
	module := f.Module
	if i := strings.IndexByte(module, '$'); i >= 0 {
		module = module[:i]
	}
	if !strings.Contains(module, ".") {
		return Info{}, unsupported("module %q has no package", f.Module)
	}
	parts := strings.Split(module, ".")
	packages := parts[:len(parts)-1]
	for _, p := range packages {
		if p == "" {
			return Info{}, unsupported("module %q", f.Module)
		}
	}

	base := ""
	for _, candidate := range []string{f.AbsPath, f.Filename} {
		b := path.Base(strings.ReplaceAll(candidate, "\\", "/"))
		if candidate != "" && extension(b) != "" {
			base = b
			break
		}
	}
	if base == "" {
		return Info{}, unsupported("module %q has no source file", f.Module)
	}
	ext := extension(base)
	if !cfg.SupportsExtension(ext) {
		return Info{}, unsupported("extension %q", ext)
	}

	depth := 2
	if len(parts[0]) == 2 && len(parts) > 1 && secondLevelLabels[parts[1]] {
		depth = 3
	}
	if depth > len(packages) {
		depth = len(packages)
	}

	return Info{
		Frame:      f,
		Raw:        f.Module,
		Path:       strings.Join(packages, "/") + "/" + base,
		Module:     module,
		ModuleRoot: strings.Join(packages[:depth], "/") + "/",
		Extension:  ext,
	}, nil
}

func extension(p string) string {
	base := path.Base(p)
	i := strings.LastIndexByte(base, '.')
	if i <= 0 || i == len(base)-1 {
		return ""
	}
	return base[i+1:]
}

func hasDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUnsupportedFrame}, args...)...)
}
