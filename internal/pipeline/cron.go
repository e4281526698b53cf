package pipeline

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// nextCronTime returns the first trigger of the standard 5-field cron
// expression strictly after t.
func nextCronTime(expr string, t time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing cron expression %q: %w", expr, err)
	}
	return schedule.Next(t), nil
}
