// Package streak computes daily-reward claim eligibility. A "claim day"
// is delimited by a configured boundary hour in a configured timezone
// rather than by calendar midnight, so a 6 AM boundary puts 05:59 in the
// previous claim day.
package streak

import "time"

// MaxStreak caps the streak; the reward table cycles weekly.
const MaxStreak = 7

// BoundaryDay returns the claim-day identity of t: its local calendar
// date, shifted back one day when t's local time-of-day is before the
// boundary hour. The result is normalized to local midnight of that date.
func BoundaryDay(t time.Time, boundaryHour int, loc *time.Location) time.Time {
	lt := t.In(loc)
	day := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	if lt.Hour() < boundaryHour {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// Evaluate decides whether a claim is allowed at now and what the new
// streak would be. It is pure: nothing is read beyond the arguments and
// nothing is persisted here.
//
//	no previous claim            -> (true, 1)
//	same claim day               -> (false, priorStreak)
//	exactly one claim day later  -> (true, min(priorStreak+1, MaxStreak))
//	a claim day was skipped      -> (true, 1)
func Evaluate(now time.Time, lastClaim *time.Time, priorStreak, boundaryHour int, loc *time.Location) (bool, int) {
	if lastClaim == nil {
		return true, 1
	}

	nowDay := BoundaryDay(now, boundaryHour, loc)
	lastDay := BoundaryDay(*lastClaim, boundaryHour, loc)

	switch {
	case nowDay.Equal(lastDay):
		return false, clamp(priorStreak)
	case lastDay.AddDate(0, 0, 1).Equal(nowDay):
		next := priorStreak + 1
		if next > MaxStreak {
			next = MaxStreak
		}
		return true, clamp(next)
	default:
		return true, 1
	}
}

func clamp(streak int) int {
	if streak < 1 {
		return 1
	}
	if streak > MaxStreak {
		return MaxStreak
	}
	return streak
}
