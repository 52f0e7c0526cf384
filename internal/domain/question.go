package domain

import (
	"time"
)

// QuestionStatus tracks where a record is in its analysis lifecycle.
type QuestionStatus string

const (
	StatusProcessing QuestionStatus = "processing"
	StatusDone       QuestionStatus = "done"
	StatusError      QuestionStatus = "error"
)

// Default classification values applied when the analysis omits them.
const (
	DefaultSubject = "Uncategorized"
	DefaultTopic   = "General"
)

// QuestionRecord is the central stored entity: one captured exam question
// with its extracted data and the original image payloads.
type QuestionRecord struct {
	ID           int64
	Images       [][]byte
	Question     string
	Options      []string
	CorrectIndex int // -1 while unresolved
	Explanation  string
	Subject      string
	Topic        string
	Status       QuestionStatus
	CreatedAt    time.Time
	ImportedAt   time.Time // zero unless the record came from a backup archive
	UserNotes    []string
}

// NewPlaceholder creates the record a submission inserts before analysis
// completes. The placeholder is immediately visible on the dashboard.
func NewPlaceholder(images [][]byte) *QuestionRecord {
	return &QuestionRecord{
		Images:       images,
		Question:     "Analyzing question...",
		Options:      []string{},
		CorrectIndex: -1,
		Subject:      DefaultSubject,
		Topic:        DefaultTopic,
		Status:       StatusProcessing,
		CreatedAt:    time.Now(),
		UserNotes:    []string{},
	}
}

// Validate checks the invariants a record must hold before it is stored.
func (q *QuestionRecord) Validate() error {
	switch q.Status {
	case StatusProcessing, StatusDone, StatusError:
	default:
		return NewInvalidInputError("status must be one of processing, done, error")
	}
	if q.Status == StatusProcessing && (q.CorrectIndex != -1 || len(q.Options) != 0) {
		return NewInvalidInputError("processing records must have no options and correctIndex -1")
	}
	return nil
}

// QuestionUpdate is a partial update merged into a stored record. Nil fields
// are left untouched.
type QuestionUpdate struct {
	Question     *string
	Options      *[]string
	CorrectIndex *int
	Explanation  *string
	Subject      *string
	Topic        *string
	Status       *QuestionStatus
	UserNotes    *[]string
}

// IsEmpty reports whether the update would change nothing.
func (u QuestionUpdate) IsEmpty() bool {
	return u.Question == nil && u.Options == nil && u.CorrectIndex == nil &&
		u.Explanation == nil && u.Subject == nil && u.Topic == nil &&
		u.Status == nil && u.UserNotes == nil
}

// ChangeType identifies a store mutation published on the change bus.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
	ChangeCleared ChangeType = "cleared"
)

// ChangeEvent notifies subscribers that a record changed. ID is zero for
// ChangeCleared.
type ChangeEvent struct {
	Type ChangeType
	ID   int64
}
