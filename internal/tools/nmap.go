package tools

import (
	"strings"
	"time"
)

// NmapAdapter builds nmap port-scan command lines.
type NmapAdapter struct{}

func NewNmapAdapter() *NmapAdapter { return &NmapAdapter{} }

func (a *NmapAdapter) Name() string { return "nmap" }
func (a *NmapAdapter) Timeout() time.Duration { return 300 * time.Second }

// BuildCommand validates target/ports/timing/additional_args and assembles
// the nmap invocation. Timing is restricted to T3/T4; ports accepts the
// named presets "top-100"/"top-1000"/"all"/"1-65535" or a literal
// digits/comma/dash port list.
func (a *NmapAdapter) BuildCommand(params map[string]any) (string, func(), error) {
	target := getString(params, "target", "")
	if target == "" {
		return "", nil, errf("target is required")
	}
	if hasShellMetacharacters(target) {
		return "", nil, errf("invalid target format")
	}

	parts := []string{"nmap"}

	switch getString(params, "timing", "T3") {
	case "T3":
		parts = append(parts, "-T3")
	case "T4":
		parts = append(parts, "-T4")
	default:
		parts = append(parts, "-T3")
	}

	ports := getString(params, "ports", "top-1000")
	switch ports {
	case "top-100":
		parts = append(parts, "--top-ports", "100")
	case "top-1000":
		parts = append(parts, "--top-ports", "1000")
	case "1-65535", "all":
		parts = append(parts, "-p", "1-65535")
	default:
		if !isPortList(ports) {
			return "", nil, errf("invalid ports format")
		}
		parts = append(parts, "-p", ports)
	}

	if extra := getString(params, "additional_args", ""); extra != "" {
		if hasShellMetacharacters(extra) {
			return "", nil, errf("invalid additional_args")
		}
		parts = append(parts, extra)
	}

	parts = append(parts, target)
	return strings.Join(parts, " "), nil, nil
}

func isPortList(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9') && c != ',' && c != '-' {
			return false
		}
	}
	return s != ""
}
