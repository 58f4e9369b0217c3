package schedule_test

import (
	"testing"
	"time"

	"herald/internal/schedule"
)

func mustLoadKolkata(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestSlotPlanNext(t *testing.T) {
	loc := mustLoadKolkata(t)
	plan := schedule.NewSlotPlan([]int{9 * 60, 14 * 60, 19 * 60}, loc)

	at := func(hour, min int) time.Time {
		return time.Date(2026, time.March, 10, hour, min, 0, 0, loc)
	}

	cases := []struct {
		name string
		now  time.Time
		last *time.Time
		want time.Time
	}{
		{
			name: "morning picks midday slot",
			now:  at(10, 30),
			want: at(14, 0),
		},
		{
			name: "exactly on a slot rolls to the next",
			now:  at(14, 0),
			want: at(19, 0),
		},
		{
			name: "after last slot rolls to next morning",
			now:  at(21, 0),
			want: time.Date(2026, time.March, 11, 9, 0, 0, 0, loc),
		},
		{
			name: "queue tail in the future wins over now",
			now:  at(10, 30),
			last: ptrTime(time.Date(2026, time.March, 12, 14, 0, 0, 0, loc)),
			want: time.Date(2026, time.March, 12, 19, 0, 0, 0, loc),
		},
		{
			name: "queue tail in the past is ignored",
			now:  at(10, 30),
			last: ptrTime(at(9, 0)),
			want: at(14, 0),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := plan.Next(tc.now, tc.last)
			if !got.Equal(tc.want) {
				t.Fatalf("Next(%v, %v) = %v, want %v", tc.now, tc.last, got, tc.want)
			}
		})
	}
}

func TestSlotPlanNextIsStrictlyIncreasing(t *testing.T) {
	loc := mustLoadKolkata(t)
	plan := schedule.NewSlotPlan([]int{9 * 60, 14 * 60, 19 * 60}, loc)
	now := time.Date(2026, time.March, 10, 10, 30, 0, 0, loc)

	var last *time.Time
	var prev time.Time
	for i := 0; i < 10; i++ {
		next := plan.Next(now, last)
		if i > 0 && !next.After(prev) {
			t.Fatalf("slot %d (%v) not after previous (%v)", i, next, prev)
		}
		prev = next
		last = ptrTime(next)
	}
}

func TestSlotPlanNormalizesUnsortedSlots(t *testing.T) {
	loc := mustLoadKolkata(t)
	plan := schedule.NewSlotPlan([]int{19 * 60, 9 * 60, 14 * 60}, loc)

	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, loc)
	want := time.Date(2026, time.March, 10, 9, 0, 0, 0, loc)
	if got := plan.Next(now, nil); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestSlotPlanHandlesOtherTimezones(t *testing.T) {
	utc := time.UTC
	plan := schedule.NewSlotPlan([]int{12 * 60}, utc)

	now := time.Date(2026, time.March, 10, 13, 0, 0, 0, utc)
	want := time.Date(2026, time.March, 11, 12, 0, 0, 0, utc)
	if got := plan.Next(now, nil); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func TestSlotPlanNextKeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	plan := schedule.NewSlotPlan([]int{14 * 60}, loc)

	cases := []struct {
		name string
		now  time.Time
	}{
		{
			name: "spring forward day",
			now:  time.Date(2026, time.March, 8, 8, 0, 0, 0, loc),
		},
		{
			name: "fall back day",
			now:  time.Date(2026, time.November, 1, 8, 0, 0, 0, loc),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := plan.Next(tc.now, nil)
			if got.Hour() != 14 || got.Minute() != 0 {
				t.Fatalf("slot landed at %02d:%02d, want 14:00", got.Hour(), got.Minute())
			}
			if got.Day() != tc.now.Day() {
				t.Fatalf("slot rolled to day %d, want %d", got.Day(), tc.now.Day())
			}
		})
	}
}
