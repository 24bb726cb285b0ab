// Package version reports the pipecat build.
//
// Version, commit and build time are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/pipecat/version.Version=1.2.0" ./cmd/pipecat
//
// Values left unset fall back to the VCS stamp the Go toolchain embeds.
package version
