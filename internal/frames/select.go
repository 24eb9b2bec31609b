package frames

import (
	"codemap/internal/platform"
)

// Categorizer decides whether a frame belongs to platform or framework
// internals. Categorized frames are never used for derivation.
type Categorizer struct {
	Platform platform.Config
}

// IsCategorized reports whether f carries a category or its module matches
// one of the platform's internal prefixes.
func (c Categorizer) IsCategorized(f Frame) bool {
	if f.Category() != "" {
		return true
	}
	return f.Module != "" && c.Platform.IsInternalModule(f.Module)
}

// IsCategorizedPrefix reports whether a dotted package prefix ("akka.") is
// platform internals.
func (c Categorizer) IsCategorizedPrefix(prefix string) bool {
	return c.Platform.IsInternalModule(prefix)
}

// Selection is the result of filtering an event's frames.
type Selection struct {
	Eligible    []Info
	Duplicates  int
	Categorized int
	NotInApp    int
	Unsupported int
}

// Select de-duplicates frames by (filename, module, abs_path), drops
// categorized frames, drops frames not marked in-app on path-based platforms
// and normalizes the rest. Module-based platforms ignore in_app.
func Select(cfg platform.Config, frames []Frame) Selection {
	var sel Selection
	cat := Categorizer{Platform: cfg}
	seen := make(map[[3]string]bool, len(frames))

	for _, f := range frames {
		k := f.key()
		if seen[k] {
			sel.Duplicates++
			continue
		}
		seen[k] = true

		if cat.IsCategorized(f) {
			sel.Categorized++
			continue
		}
		if cfg.Kind == platform.PathBased && !f.IsInApp() {
			sel.NotInApp++
			continue
		}
		info, err := Normalize(cfg, f)
		if err != nil {
			sel.Unsupported++
			continue
		}
		sel.Eligible = append(sel.Eligible, info)
	}
	return sel
}
