package tools

import (
	"strings"
	"time"
)

// NucleiAdapter builds nuclei template-scan command lines.
type NucleiAdapter struct{}

func NewNucleiAdapter() *NucleiAdapter { return &NucleiAdapter{} }

func (a *NucleiAdapter) Name() string { return "nuclei" }
func (a *NucleiAdapter) Timeout() time.Duration { return 600 * time.Second }

// BuildCommand validates target/tags and always appends the mandatory
// 50 req/s rate limit.
func (a *NucleiAdapter) BuildCommand(params map[string]any) (string, func(), error) {
	target := getString(params, "target", "")
	if target == "" {
		return "", nil, errf("target is required")
	}
	if hasShellMetacharacters(target) {
		return "", nil, errf("invalid target format")
	}

	parts := []string{"nuclei", "-target", target}

	if tags := getStringSlice(params, "tags"); len(tags) > 0 {
		joined := strings.Join(tags, ",")
		if !isTagCharset(joined) {
			return "", nil, errf("invalid tags format")
		}
		parts = append(parts, "-tags", joined)
	}

	parts = append(parts, "-rate-limit", "50")
	return strings.Join(parts, " "), nil, nil
}

func isTagCharset(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == ',':
		default:
			return false
		}
	}
	return true
}
