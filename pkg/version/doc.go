// Package version holds the build information of the stsync binary.
//
// The variables can be set at link time with -ldflags "-X". Unset values
// are filled from the module build info embedded by the Go toolchain.
package version
