// internal/domain/retention/cutoff.go
package retention

import "time"

// ComputeCutoff returns the first instant of the month that lies monthsBack
// calendar months before now, in now's location. Rows strictly older than the
// returned instant are eligible for deletion.
//
// Clamping to the 1st means "one month before March 31" is March's predecessor
// as a whole (February 1st), never an invalid February 31st.
func ComputeCutoff(now time.Time, monthsBack int) time.Time {
	if monthsBack < 0 {
		monthsBack = 0
	}
	// time.Date normalizes month underflow into previous years.
	return time.Date(now.Year(), now.Month()-time.Month(monthsBack), 1, 0, 0, 0, 0, now.Location())
}
