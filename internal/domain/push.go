package domain

import "time"

// PushStatus tracks the notification lifecycle of a surfaced question.
// Transitions go pending -> answered or pending -> dismissed, never backward.
type PushStatus string

const (
	PushPending   PushStatus = "pending"
	PushAnswered  PushStatus = "answered"
	PushDismissed PushStatus = "dismissed"
)

// PushRecord is a per-user log entry created when a question is surfaced.
type PushRecord struct {
	ID         string
	UserID     int64
	QuestionID string
	PushedAt   time.Time
	Status     PushStatus
	AnsweredAt *time.Time
}

// PushHistoryLimit caps retained push records per user; the oldest are
// evicted first.
const PushHistoryLimit = 50
