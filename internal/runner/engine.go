// Package runner executes rendered scenarios with the engine tools.
package runner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sourceplane/khiopsctl/internal/render"
)

// Engine tool names, as declared by task specs.
const (
	ToolKhiops       = "khiops"
	ToolCoclustering = "khiops_coclustering"
)

// Engine runs scenarios and reports the installed engine version.
type Engine interface {
	Execute(ctx context.Context, scenario *render.Scenario) error
	Version(ctx context.Context) (string, error)
}

var versionPattern = regexp.MustCompile(`\b([0-9]+\.[0-9]+(?:\.[0-9]+)?(?:-[0-9A-Za-z.]+)?)\b`)

// ParseVersion extracts the version from the output of `<tool> -v`, for
// example "Khiops 10.2.1".
func ParseVersion(output string) (string, error) {
	match := versionPattern.FindStringSubmatch(output)
	if match == nil {
		return "", fmt.Errorf("no engine version found in %q", strings.TrimSpace(output))
	}
	return match[1], nil
}

// LogErrors returns the log lines reporting an error. The engine reports
// failures there even when it exits with code 0.
func LogErrors(log string) []string {
	var errors []string
	for _, line := range strings.Split(log, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "fatal error") || strings.Contains(lower, "error :") {
			errors = append(errors, strings.TrimSpace(line))
		}
	}
	return errors
}
