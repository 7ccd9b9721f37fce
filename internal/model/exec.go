package model

// ExecRequest contains the parameters for running an external command.
type ExecRequest struct {
	// Command is the program to run.
	Command string
	// Args are the program arguments.
	Args []string
	// Dir overrides the working directory for this single invocation
	// (optional, defaults to the calling context's working directory).
	Dir string
	// Env overrides the environment for this single invocation (optional,
	// defaults to the calling context's environment).
	Env map[string]string
	// CaptureStdout buffers stdout and returns it on success, in addition to
	// streaming it to the log sink.
	CaptureStdout bool
}

// ExecResult contains the result of a successful command invocation.
type ExecResult struct {
	// Stdout is the captured standard output (only when requested).
	Stdout string
	// ExitCode is the exit code of the executed command.
	ExitCode int
}
