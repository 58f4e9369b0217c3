package schedule

import (
	"sort"
	"time"
)

// SlotPlan computes posting slots for a queue. Slots are minutes after
// midnight in the configured location, kept sorted.
type SlotPlan struct {
	minutes  []int
	location *time.Location
}

// NewSlotPlan builds a plan from slot offsets (minutes after midnight) and a
// timezone. The offsets are copied and sorted.
func NewSlotPlan(minutes []int, location *time.Location) SlotPlan {
	sorted := make([]int, len(minutes))
	copy(sorted, minutes)
	sort.Ints(sorted)
	return SlotPlan{minutes: sorted, location: location}
}

// Next returns the earliest slot strictly after both now and the queue's
// latest pending time (nil when the queue is empty). Rolling past the last
// slot of a day lands on the first slot of the following day, so each new
// job in a queue always gets a later slot than every job before it.
func (p SlotPlan) Next(now time.Time, lastPending *time.Time) time.Time {
	base := now
	if lastPending != nil && lastPending.After(base) {
		base = *lastPending
	}
	base = base.In(p.location)

	year, month, day := base.Date()
	// Slots are wall-clock times, built with time.Date rather than a
	// midnight offset so they hold on DST-transition days.
	for extra := 0; ; extra++ {
		for _, offset := range p.minutes {
			slot := time.Date(year, month, day+extra, offset/60, offset%60, 0, 0, p.location)
			if slot.After(base) {
				return slot
			}
		}
	}
}
