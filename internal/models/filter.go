package models

import "fmt"

// Filter selects the sessions a leaderboard sums over. It is one of
// RangeFilter, MonthFilter or MonthWeekFilter.
type Filter interface {
	isFilter()
	String() string
}

// RangeFilter matches KST dates between Start and End, both inclusive,
// formatted YYYY-MM-DD.
type RangeFilter struct {
	Start string
	End   string
}

// MonthFilter matches a KST calendar month.
type MonthFilter struct {
	Year  int
	Month int
}

// MonthWeekFilter matches one week-of-month inside a KST calendar month.
type MonthWeekFilter struct {
	Year  int
	Month int
	Week  int
}

func (RangeFilter) isFilter()     {}
func (MonthFilter) isFilter()     {}
func (MonthWeekFilter) isFilter() {}

func (f RangeFilter) String() string { return fmt.Sprintf("%s~%s", f.Start, f.End) }
func (f MonthFilter) String() string { return fmt.Sprintf("%d-%d", f.Year, f.Month) }
func (f MonthWeekFilter) String() string {
	return fmt.Sprintf("%d-%d W%d", f.Year, f.Month, f.Week)
}

// Matches reports whether s falls inside f. Storage backends that cannot
// push the predicate down to the database use it directly.
func Matches(f Filter, s VoiceSession) bool {
	switch f := f.(type) {
	case RangeFilter:
		return s.KSTDate >= f.Start && s.KSTDate <= f.End
	case MonthFilter:
		return s.KSTYear == f.Year && s.KSTMonth == f.Month
	case MonthWeekFilter:
		return s.KSTYear == f.Year && s.KSTMonth == f.Month && s.KSTWeekOfMonth == f.Week
	default:
		panic(fmt.Sprintf("models: unknown filter %T", f))
	}
}
