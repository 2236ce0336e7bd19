package api

import (
	"fmt"
	"net/url"
	"strings"

	"vrpcore/internal/webhooks"
)

const maxJobs = 10000

func validateSolveRequest(req *SolveRequest) error {
	if len(req.Problem) == 0 || string(req.Problem) == "null" {
		return fmt.Errorf("problem is required")
	}
	if req.TimeLimitMs < 0 {
		return fmt.Errorf("timeLimitMs must be >= 0")
	}
	return nil
}

func validateJobCount(n int) error {
	if n > maxJobs {
		return fmt.Errorf("too many jobs: %d (max %d)", n, maxJobs)
	}
	return nil
}

func validateSubscription(rawURL string, events []string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) URL")
	}
	if len(events) == 0 {
		return fmt.Errorf("at least one event is required")
	}
	allowed := map[string]struct{}{
		webhooks.EventRunCompleted: {},
		webhooks.EventRunFailed:    {},
		webhooks.EventRunCancelled: {},
	}
	for _, e := range events {
		if _, ok := allowed[strings.ToLower(e)]; !ok {
			return fmt.Errorf("unknown event: %s (allowed: run.completed,run.failed,run.cancelled)", e)
		}
	}
	return nil
}
