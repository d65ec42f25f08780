package version

// Build holds the build identifier, injected via -ldflags. Default "dev".
var Build = "dev"

// Commit is the VCS revision the binary was built from, injected via -ldflags.
var Commit = "unknown"

// String renders the build identifier for `localcloud version` and --version.
func String() string {
	if Commit == "" || Commit == "unknown" {
		return Build
	}
	return Build + " (" + Commit + ")"
}
