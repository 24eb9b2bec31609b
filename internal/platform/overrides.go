package platform

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// override is one [platforms.<name>] table. Nil fields keep the base value.
type override struct {
	Kind                *string  `toml:"kind"`
	Supported           *bool    `toml:"supported"`
	DryRun              *bool    `toml:"dry_run"`
	DryRunOrganizations []int64  `toml:"dry_run_organizations"`
	Extensions          []string `toml:"extensions"`
	InternalModules     []string `toml:"internal_modules"`
}

type overrideFile struct {
	Platforms map[string]override `toml:"platforms"`
}

// LoadOverrides decodes a TOML file of [platforms.<name>] tables and applies
// them on top of base. Platforms absent from base are added.
func LoadOverrides(path string, base *Registry) (*Registry, error) {
	var file overrideFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("decoding platform overrides %s: %w", path, err)
	}
	return applyOverrides(base, file)
}

// ParseOverrides is LoadOverrides for in-memory TOML.
func ParseOverrides(data string, base *Registry) (*Registry, error) {
	var file overrideFile
	if _, err := toml.Decode(data, &file); err != nil {
		return nil, fmt.Errorf("decoding platform overrides: %w", err)
	}
	return applyOverrides(base, file)
}

func applyOverrides(base *Registry, file overrideFile) (*Registry, error) {
	out := NewRegistry()
	for _, name := range base.Names() {
		out.Set(base.Lookup(name))
	}

	for name, o := range file.Platforms {
		c := out.Lookup(name)
		if o.Kind != nil {
			kind, err := ParseKind(*o.Kind)
			if err != nil {
				return nil, fmt.Errorf("platform %s: %w", name, err)
			}
			c.Kind = kind
		}
		if o.Supported != nil {
			c.Supported = *o.Supported
		}
		if o.DryRun != nil {
			c.DryRun = *o.DryRun
		}
		if o.DryRunOrganizations != nil {
			c.DryRunOrganizations = o.DryRunOrganizations
		}
		if o.Extensions != nil {
			c.Extensions = o.Extensions
		}
		if o.InternalModules != nil {
			c.InternalModules = o.InternalModules
		}
		out.Set(c)
	}
	return out, nil
}
