package config

// Version is the current interpreter version.
// Set at build time via -ldflags or by writing to this file.
var Version = "0.1.0"

const SourceFileExt = ".lox"

// HasSourceExt returns true if the path ends with the recognized source
// extension.
func HasSourceExt(path string) bool {
	return len(path) >= len(SourceFileExt) &&
		path[len(path)-len(SourceFileExt):] == SourceFileExt
}

// TrimSourceExt removes the source extension from a filename.
// Returns the original string if the extension does not match.
func TrimSourceExt(name string) string {
	if HasSourceExt(name) {
		return name[:len(name)-len(SourceFileExt)]
	}
	return name
}

// DefaultPrompt is the REPL prompt shown when stdout is a terminal.
const DefaultPrompt = "> "

// ConfigFileName is the optional per-directory settings file.
const ConfigFileName = "lox.yaml"

// MaxReplLine is the longest accepted REPL input line, in bytes.
const MaxReplLine = 1024
