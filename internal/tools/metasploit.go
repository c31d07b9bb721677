package tools

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// MetasploitAdapter builds msfconsole resource-script invocations. The
// module string must be in the hard-coded allowlist; this is the only
// adapter whose task directly controls exploitation, so it gets the
// strictest gate in the set.
type MetasploitAdapter struct{}

func NewMetasploitAdapter() *MetasploitAdapter { return &MetasploitAdapter{} }

func (a *MetasploitAdapter) Name() string { return "metasploit" }
func (a *MetasploitAdapter) Timeout() time.Duration { return 600 * time.Second }

// allowedModules is the strict whitelist of exploit modules this adapter
// will ever invoke. Extending it is a deliberate, reviewed change, not a
// runtime configuration knob.
var allowedModules = map[string]bool{
	"exploit/windows/smb/ms17_010_eternalblue": true,
}

// BuildCommand writes a resource script (`use <module>`, `set <k> <v>` per
// option, `exploit -z`) to a temp file and returns a command invoking
// msfconsole against it. The returned cleanup removes the temp file.
func (a *MetasploitAdapter) BuildCommand(params map[string]any) (string, func(), error) {
	module := getString(params, "module", "")
	if module == "" {
		return "", nil, errf("module is required")
	}
	if !allowedModules[module] {
		return "", nil, errf("module %q is not in the allowed whitelist", module)
	}

	options := getMap(params, "options")

	var sb strings.Builder
	sb.WriteString("use " + module + "\n")
	for key, value := range options {
		valStr := fmt.Sprintf("%v", value)
		if hasShellMetacharacters(valStr) {
			return "", nil, errf("invalid value for option %s", key)
		}
		sb.WriteString(fmt.Sprintf("set %s %s\n", key, valStr))
	}
	sb.WriteString("exploit -z\n")

	f, err := os.CreateTemp("", "scanforge_msf_*.rc")
	if err != nil {
		return "", nil, errf("failed to create resource script: %v", err)
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", nil, errf("failed to write resource script: %v", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", nil, errf("failed to write resource script: %v", err)
	}

	cleanup := func() { _ = os.Remove(f.Name()) }
	command := "msfconsole -q -r " + f.Name()
	return command, cleanup, nil
}
