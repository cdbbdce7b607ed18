package engine

import "time"

// Clock supplies the server-side event time for commits that carry no
// client timestamp, and the "now" that liveness is judged against.
//
// Materializers never read a Clock: once an event is committed its
// timestamp is part of the log and replay uses that.
//
// Implemented by SystemClock (production) and testutil.ManualClock (tests).
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
//
// Thread-safety: SystemClock is stateless and safe for concurrent use.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// eventTime truncates t to the log's millisecond resolution so the event a
// writer applies is identical to the one replay rebuilds.
func eventTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
