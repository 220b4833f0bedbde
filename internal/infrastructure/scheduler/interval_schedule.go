package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule runs a job every Interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// Every returns an IntervalSchedule. Intervals under one second are raised
// to one second.
func Every(interval time.Duration) *IntervalSchedule {
	if interval < time.Second {
		interval = time.Second
	}
	return &IntervalSchedule{Interval: interval}
}

// Next implements Schedule.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval)
}
