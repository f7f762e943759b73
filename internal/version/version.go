package version

// Version information for strmatch
const (
	// Version is the current semantic version of strmatch
	Version = "0.2.0"

	// BuildDate is set during build time (use -ldflags)
	BuildDate = "development"

	// GitCommit is set during build time (use -ldflags)
	GitCommit = "unknown"
)

// Info returns version information as a string
func Info() string {
	return Version
}

// FullInfo returns detailed version information
func FullInfo() string {
	return "strmatch " + Version + " (commit: " + GitCommit + ", built: " + BuildDate + ")"
}
