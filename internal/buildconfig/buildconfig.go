package buildconfig

// Set at link time:
//
//	-ldflags "-X github.com/Harshitk-cp/tenantbridge/internal/buildconfig.version=v1.2.0
//	          -X github.com/Harshitk-cp/tenantbridge/internal/buildconfig.commit=$(git rev-parse --short HEAD)
//	          -X github.com/Harshitk-cp/tenantbridge/internal/buildconfig.buildTime=$(date -u +%FT%TZ)"
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = ""
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// String renders the build as "version (commit)".
func String() string {
	return version + " (" + commit + ")"
}

// VersionInfo is reported by /health.
func VersionInfo() map[string]string {
	info := map[string]string{
		"version": version,
		"commit":  commit,
	}
	if buildTime != "" {
		info["build_time"] = buildTime
	}
	return info
}
