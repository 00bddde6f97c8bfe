package gatelog

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"libtrack/internal/similarity"
	"libtrack/internal/student"
)

// RateLimitedError reports a scan inside the minimum re-scan interval.
// WaitRemaining is how long the student must wait before the next scan can
// advance their state. Always recoverable by waiting and re-scanning.
type RateLimitedError struct {
	WaitRemaining time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("scanned too soon, wait %s", e.WaitRemaining.Round(time.Second))
}

// Classify decides the next gate event for a student. It is a pure decision
// function: it inspects the most recent event (nil when the student has no
// history) and either returns the fully built record to append, or a
// RateLimitedError when now is within minInterval of the last event.
//
// The first-ever event is an Entry; afterwards types strictly alternate.
// Snapshot fields come from the current student record, not from any prior
// log. The verdict maps onto the optional ImageMatch field; it never blocks
// the write. Persistence is the caller's job.
func Classify(st student.Student, now time.Time, lastEvent *EntryLog, minInterval time.Duration, verdict similarity.Verdict) (EntryLog, error) {
	next := EventEntry
	if lastEvent != nil {
		if elapsed := now.Sub(lastEvent.Timestamp); elapsed < minInterval {
			return EntryLog{}, RateLimitedError{WaitRemaining: minInterval - elapsed}
		}
		if lastEvent.Type == EventEntry {
			next = EventExit
		}
	}
	return EntryLog{
		ID:          uuid.NewString(),
		StudentID:   st.ID,
		StudentName: st.Name,
		Branch:      st.Branch,
		Timestamp:   now,
		Type:        next,
		ImageMatch:  verdict.Bool(),
	}, nil
}
