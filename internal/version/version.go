// Package version carries the build identity stamped in by the
// release linker flags and printed by the daemon's -version flag.
package version

var (
	// Version is the followspot release version.
	Version = "dev"
	// GitSHA is the git commit SHA of the build.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)
