package tools

import (
	"strconv"
	"strings"
	"time"
)

// GobusterAdapter builds gobuster directory/DNS/vhost brute-force command lines.
type GobusterAdapter struct{}

func NewGobusterAdapter() *GobusterAdapter { return &GobusterAdapter{} }

func (a *GobusterAdapter) Name() string { return "gobuster" }
func (a *GobusterAdapter) Timeout() time.Duration { return 600 * time.Second }

var gobusterModes = map[string]bool{"dir": true, "dns": true, "fuzz": true, "vhost": true}

func (a *GobusterAdapter) BuildCommand(params map[string]any) (string, func(), error) {
	url := getString(params, "url", "")
	if url == "" {
		return "", nil, errf("url is required")
	}
	if hasShellMetacharacters(url) {
		return "", nil, errf("invalid url format")
	}

	mode := getString(params, "mode", "dir")
	if !gobusterModes[mode] {
		return "", nil, errf("invalid mode: %s", mode)
	}

	wordlist := getString(params, "wordlist", "/usr/share/wordlists/dirb/common.txt")
	if hasShellMetacharacters(wordlist) {
		return "", nil, errf("invalid wordlist path")
	}

	threads := getInt(params, "threads", 10)

	parts := []string{"gobuster", mode, "-u", url, "-w", wordlist, "-t", strconv.Itoa(threads)}
	return strings.Join(parts, " "), nil, nil
}
