package model

// ProjectConfig is the optional per-project tool configuration, loaded from a
// YAML file at the project root. Command line flags take precedence over it.
type ProjectConfig struct {
	// BasePath is the root directory for the whole build.
	BasePath string
	// MaxProcs bounds the number of concurrently running external processes.
	// Zero means "use the available CPU count".
	MaxProcs int
	// Env are extra environment variables injected into every build context.
	Env map[string]string
	// DefaultTask overrides the conventional "default" root task.
	DefaultTask string
}
