// Package version reports how the binaries were built.
package version

import (
	"fmt"
	"runtime"
)

// Stamped at build time, e.g.
// -ldflags "-X github.com/zsiec/ingex/pkg/version.Version=1.2.0".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Product names the player in logs and on /version.
const Product = "ingex-player"

// Info describes one build.
type Info struct {
	Product   string `json:"product"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func GetInfo() Info {
	return Info{
		Product:   Product,
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String is the -version output.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s %s)",
		i.Product, i.Version, shortCommit(i.GitCommit), i.BuildTime, i.GoVersion, i.Platform)
}

// Short is logged with every entry.
func (i Info) Short() string { return i.Product + " " + i.Version }

// UserAgent identifies a client binary to the status API.
func (i Info) UserAgent(client string) string {
	return fmt.Sprintf("%s/%s (%s)", client, i.Version, i.Platform)
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}
