package models

import "time"

// MinTitleLength is the shortest accepted task title, in characters.
const MinTitleLength = 5

// Task is a to-do item. UserID is set at creation and never changes.
type Task struct {
	ID        string
	UserID    string
	Title     string
	DueDate   time.Time
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Bucket is the read-time classification of a task.
type Bucket int

const (
	BucketOverdue Bucket = iota
	BucketDueToday
	BucketDueLater
	BucketCompleted
)

func (b Bucket) String() string {
	switch b {
	case BucketOverdue:
		return "overdue"
	case BucketDueToday:
		return "due_today"
	case BucketDueLater:
		return "due_later"
	case BucketCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// DayWindow is one calendar day: [Start, End).
type DayWindow struct {
	Start time.Time
	End   time.Time
}

// DayWindowAt returns the calendar day containing now, in now's location.
// End is the next midnight, so 23- and 25-hour days are handled.
func DayWindowAt(now time.Time) DayWindow {
	y, m, d := now.Date()
	loc := now.Location()
	return DayWindow{
		Start: time.Date(y, m, d, 0, 0, 0, 0, loc),
		End:   time.Date(y, m, d+1, 0, 0, 0, 0, loc),
	}
}

func (w DayWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Classify places a task in exactly one bucket. Completed tasks are always
// BucketCompleted whatever their due date.
func Classify(due time.Time, completed bool, now time.Time) Bucket {
	if completed {
		return BucketCompleted
	}
	day := DayWindowAt(now)
	switch {
	case due.Before(day.Start):
		return BucketOverdue
	case due.Before(day.End):
		return BucketDueToday
	default:
		return BucketDueLater
	}
}

// BucketAt classifies t against now.
func (t *Task) BucketAt(now time.Time) Bucket {
	return Classify(t.DueDate, t.Completed, now)
}
