package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringIncludesShortCommit(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = origVersion, origCommit })

	Version = "1.2.3"
	GitCommit = "unknown"
	assert.Equal(t, "1.2.3", String())

	GitCommit = "0123456789abcdef"
	assert.Equal(t, "1.2.3-01234567", String())
}

func TestStringFull(t *testing.T) {
	origVersion, origCommit, origBranch, origTime := Version, GitCommit, GitBranch, BuildTime
	t.Cleanup(func() { Version, GitCommit, GitBranch, BuildTime = origVersion, origCommit, origBranch, origTime })

	Version = "1.2.3"
	GitCommit = "0123456789abcdef"
	GitBranch = "main"
	BuildTime = "2026-01-02T15:04:05Z"

	full := StringFull()
	assert.Contains(t, full, "Version=1.2.3")
	assert.Contains(t, full, "Commit=01234567")
	assert.Contains(t, full, "Branch=main")
	assert.Contains(t, full, "BuildTime=2026-01-02T15:04:05Z")
}
