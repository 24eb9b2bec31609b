// Package platform holds the per-platform derivation policy: whether a
// platform is derivable, how its frames are matched, which file extensions it
// declares, which organizations run it in dry-run mode, and which module
// prefixes its pre-classifier treats as internal.
package platform

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Kind selects the matcher used for a platform's frames.
type Kind int

const (
	// PathBased platforms are matched on the frame's file path.
	PathBased Kind = iota
	// ModuleBased platforms are matched on the frame's dotted module name.
	ModuleBased
)

func (k Kind) String() string {
	switch k {
	case ModuleBased:
		return "module"
	default:
		return "path"
	}
}

// ParseKind parses "path" or "module".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "path", "":
		return PathBased, nil
	case "module":
		return ModuleBased, nil
	default:
		return PathBased, fmt.Errorf("unknown platform kind %q", s)
	}
}

// Config is the policy for one platform.
type Config struct {
	Name                string
	Kind                Kind
	Supported           bool
	DryRun              bool
	DryRunOrganizations []int64
	Extensions          []string
	InternalModules     []string
}

// IsDryRun reports whether derivation for this platform must not persist
// anything for the given organization.
func (c Config) IsDryRun(organizationID int64) bool {
	return c.DryRun || slices.Contains(c.DryRunOrganizations, organizationID)
}

// SupportsExtension reports whether ext (without the dot) is declared.
func (c Config) SupportsExtension(ext string) bool {
	if ext == "" {
		return false
	}
	for _, e := range c.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// IsInternalModule reports whether the pre-classifier marks module as
// platform or framework internals.
func (c Config) IsInternalModule(module string) bool {
	for _, prefix := range c.InternalModules {
		if strings.HasPrefix(module, prefix) {
			return true
		}
	}
	return false
}

// Registry is the platform -> policy table.
type Registry struct {
	platforms map[string]Config
}

// NewRegistry builds a registry from the given configs.
func NewRegistry(configs ...Config) *Registry {
	r := &Registry{platforms: make(map[string]Config, len(configs))}
	for _, c := range configs {
		r.platforms[c.Name] = c
	}
	return r
}

// Lookup returns the policy for name. Unknown platforms are unsupported.
func (r *Registry) Lookup(name string) Config {
	if c, ok := r.platforms[name]; ok {
		return c
	}
	return Config{Name: name}
}

// Set replaces the policy for c.Name.
func (r *Registry) Set(c Config) {
	r.platforms[c.Name] = c
}

// Names returns the registered platform names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.platforms))
	for name := range r.platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var jvmInternals = []string{
	"akka.",
	"android.",
	"androidx.",
	"com.android.internal.",
	"com.sun.",
	"dalvik.",
	"java.",
	"javax.",
	"jdk.",
	"kotlin.",
	"kotlinx.",
	"org.jetbrains.",
	"scala.",
	"sun.",
}

var jsExtensions = []string{"js", "jsx", "mjs", "cjs", "ts", "tsx", "mts", "cts", "vue", "svelte"}

// DefaultRegistry returns the built-in platform table.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Config{Name: "javascript", Kind: PathBased, Supported: true, Extensions: jsExtensions},
		Config{Name: "node", Kind: PathBased, Supported: true, Extensions: jsExtensions},
		Config{Name: "python", Kind: PathBased, Supported: true, Extensions: []string{"py"}},
		Config{Name: "ruby", Kind: PathBased, Supported: true, Extensions: []string{"rb", "rake"}},
		Config{Name: "go", Kind: PathBased, Supported: true, Extensions: []string{"go"}},
		Config{Name: "php", Kind: PathBased, Supported: true, Extensions: []string{"php"}},
		Config{Name: "csharp", Kind: PathBased, Supported: true, Extensions: []string{"cs"}},
		Config{Name: "elixir", Kind: PathBased, Supported: true, Extensions: []string{"ex", "exs"}},
		Config{
			Name:            "java",
			Kind:            ModuleBased,
			Supported:       true,
			Extensions:      []string{"java", "kt", "kts", "scala", "groovy", "clj"},
			InternalModules: jvmInternals,
		},
	)
}
