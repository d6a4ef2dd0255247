package orchestrator

import "time"

// pollDelay maps a 0-based poll attempt index to the wait before that poll.
// The first attempts back off quickly so the user sees progress soon after
// submitting; later attempts settle on a fixed ceiling to avoid hammering a
// remote service whose processing routinely takes several seconds.
func pollDelay(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 500 * time.Millisecond
	case 1:
		return time.Second
	case 2:
		return 2 * time.Second
	default:
		return 5 * time.Second
	}
}
