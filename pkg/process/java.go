package process

import (
	"context"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"
)

var javaVersionPattern = regexp.MustCompile(`version "([^"]+)"`)

// JavaVersion is what `java -version` reported.
type JavaVersion struct {
	// Raw is the console output, both streams in arrival order.
	Raw []string

	// Version is the parsed runtime version, nil when unparsable.
	Version *version.Version

	// Is64Bit reports whether the runtime announced a 64-bit VM.
	Is64Bit bool
}

// JavaVersionProbe runs `<javaExe> -version` and evaluates it with
// ProbePolicy. The parsed information is returned even when the policy
// rejects the run, so callers can log what was seen.
func JavaVersionProbe(ctx context.Context, runner *Runner, javaExe string) (*JavaVersion, error) {
	res, err := runner.Run(ctx, Command{Path: javaExe, ArgList: []string{"-version"}})
	if err != nil {
		return nil, err
	}

	info := parseJavaVersion(res.Output)
	return info, ProbePolicy{}.Evaluate(res)
}

func parseJavaVersion(lines []ConsoleOut) *JavaVersion {
	info := &JavaVersion{}
	for _, l := range lines {
		info.Raw = append(info.Raw, l.Text)
		if strings.Contains(l.Text, "64-Bit") {
			info.Is64Bit = true
		}
		if info.Version != nil {
			continue
		}
		m := javaVersionPattern.FindStringSubmatch(l.Text)
		if m == nil {
			continue
		}
		// 1.8.0_151 style update numbers become build metadata.
		if v, err := version.NewVersion(strings.Replace(m[1], "_", "+", 1)); err == nil {
			info.Version = v
		}
	}
	return info
}
