package models

import "time"

// ActivityRecord is one row of the activity table: the most recent moment a
// user was observed sending a message or moving between voice channels.
type ActivityRecord struct {
	UserID     int64
	LastActive time.Time
}
