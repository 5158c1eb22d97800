// Package version reports the build version.
package version

// Version is overridden at build time with -ldflags "-X ...version.Version=...".
var Version = "1.0.0"

// String returns the version string.
func String() string { return Version }
