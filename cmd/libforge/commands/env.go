package commands

import (
	"github.com/EdgeApp/libforge/internal/utils/env"
)

// parseEnvSpecs parses --env values: either KEY=VALUE pairs or bare KEY names
// inherited from the current environment.
func parseEnvSpecs(specs []string) (map[string]string, error) {
	return env.ParseSpecs(specs)
}
