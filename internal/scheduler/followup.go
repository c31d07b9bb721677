package scheduler

import (
	"strings"

	"github.com/scanforge/scanforge/internal/model"
)

// webIndicators are stdout substrings that mark an nmap result as having
// found a web service worth following up on.
var webIndicators = []string{"80/tcp", "443/tcp", "http"}

// FollowUpRule inspects a just-completed task and returns any new tasks
// that should be appended to the job's DAG as a result. Rules run in
// registration order; more can be added without touching the scheduling
// loop.
type FollowUpRule func(job *model.Job, completed *model.Task) []*model.Task

// defaultFollowUpRules is the standard rule set: an nmap task that finds a
// web service spawns nuclei and gobuster tasks depending on it.
var defaultFollowUpRules = []FollowUpRule{webDetectionRule}

func webDetectionRule(job *model.Job, completed *model.Task) []*model.Task {
	if completed.ToolName != "nmap" {
		return nil
	}
	result := completed.Result()
	if result == nil || !result.Success {
		return nil
	}
	if !containsWebIndicator(result.Stdout) {
		return nil
	}

	target := job.Target
	if t, ok := completed.Params["target"].(string); ok && t != "" {
		target = t
	}
	webTarget := "http://" + target

	nuclei := model.NewTask("nuclei", map[string]any{"target": webTarget}, completed.ID)
	gobuster := model.NewTask("gobuster", map[string]any{"url": webTarget}, completed.ID)
	return []*model.Task{nuclei, gobuster}
}

func containsWebIndicator(stdout string) bool {
	for _, indicator := range webIndicators {
		if strings.Contains(stdout, indicator) {
			return true
		}
	}
	return false
}
