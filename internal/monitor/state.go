package monitor

import (
	"time"

	"github.com/venkytv/pingdom-alert/internal/pingdom"
)

// downCheck pairs a check with the start of its current down-streak.
type downCheck struct {
	check pingdom.Check
	since time.Time
}

func (d downCheck) downFor(now time.Time) time.Duration {
	return now.Sub(d.since)
}

func (d downCheck) logAttrs() []any {
	attrs := []any{
		"check_id", d.check.ID,
		"name", d.check.Name,
		"down_since", d.since.UTC().Format(time.DateTime),
	}
	if at := d.check.LastErrorAt(); at.Valid {
		attrs = append(attrs, "last_error_time", at.Time.Format(time.DateTime))
	}
	if d.check.LastResponseTime.Valid {
		attrs = append(attrs, "last_response_ms", d.check.LastResponseTime.Int64)
	}
	return attrs
}

// tickResult remembers how the most recent tick ended.
type tickResult struct {
	at          time.Time
	err         error
	lastSuccess time.Time
}

func (r tickResult) healthy(now time.Time, interval time.Duration) bool {
	if r.lastSuccess.IsZero() {
		return false
	}
	return now.Sub(r.lastSuccess) <= 3*interval
}
