package tools

import (
	"strings"
	"time"
)

// HydraAdapter builds hydra credential brute-force command lines.
type HydraAdapter struct{}

func NewHydraAdapter() *HydraAdapter { return &HydraAdapter{} }

func (a *HydraAdapter) Name() string { return "hydra" }
func (a *HydraAdapter) Timeout() time.Duration { return 600 * time.Second }

// BuildCommand requires both a user identifier (single or list) and a
// password identifier (single or list), and always pins parallelism to 4.
func (a *HydraAdapter) BuildCommand(params map[string]any) (string, func(), error) {
	target := getString(params, "target", "")
	service := getString(params, "service", "")
	if target == "" || service == "" {
		return "", nil, errf("target and service are required")
	}
	if hasShellMetacharacters(target) {
		return "", nil, errf("invalid target")
	}
	if hasShellMetacharacters(service) {
		return "", nil, errf("invalid service")
	}

	username := getString(params, "username", "")
	userList := getString(params, "user_list", "")
	password := getString(params, "password", "")
	passList := getString(params, "pass_list", "")

	if username == "" && userList == "" {
		return "", nil, errf("username (or list) and password (or list) are required")
	}
	if password == "" && passList == "" {
		return "", nil, errf("username (or list) and password (or list) are required")
	}

	parts := []string{"hydra", "-t", "4"}

	switch {
	case username != "":
		if hasShellMetacharacters(username) {
			return "", nil, errf("invalid username")
		}
		parts = append(parts, "-l", username)
	case userList != "":
		if hasShellMetacharacters(userList) {
			return "", nil, errf("invalid user_list path")
		}
		parts = append(parts, "-L", userList)
	}

	switch {
	case password != "":
		if hasShellMetacharacters(password) {
			return "", nil, errf("invalid password")
		}
		parts = append(parts, "-p", password)
	case passList != "":
		if hasShellMetacharacters(passList) {
			return "", nil, errf("invalid pass_list path")
		}
		parts = append(parts, "-P", passList)
	}

	parts = append(parts, target, service)
	return strings.Join(parts, " "), nil, nil
}
