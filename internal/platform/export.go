package platform

import (
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
)

// MarshalOverrides renders every platform in reg as an override file.
// Applying the result to an empty registry reproduces reg.
func MarshalOverrides(reg *Registry) ([]byte, error) {
	file := overrideFile{Platforms: make(map[string]override)}
	for _, name := range reg.Names() {
		c := reg.Lookup(name)
		kind := c.Kind.String()
		supported, dryRun := c.Supported, c.DryRun
		file.Platforms[name] = override{
			Kind:                &kind,
			Supported:           &supported,
			DryRun:              &dryRun,
			DryRunOrganizations: orEmpty(c.DryRunOrganizations),
			Extensions:          orEmpty(c.Extensions),
			InternalModules:     orEmpty(c.InternalModules),
		}
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("encoding platform table: %w", err)
	}
	return data, nil
}

// orEmpty keeps an explicit empty array in the output so it overrides the
// base value on reload.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
