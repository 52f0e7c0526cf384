package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mockmaster/internal/domain"
)

// StringSlice stores a string array as a JSON document in a TEXT column.
type StringSlice []string

// Value implements the driver.Valuer interface
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	jsonData, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(jsonData), nil
}

// Scan implements the sql.Scanner interface
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	var bytesToParse []byte

	switch v := value.(type) {
	case []byte:
		bytesToParse = v
	case string:
		bytesToParse = []byte(v)
	default:
		return errors.New("StringSlice Scan: unsupported type " + fmt.Sprintf("%T", value))
	}

	if len(bytesToParse) == 0 || string(bytesToParse) == "null" {
		*s = StringSlice{}
		return nil
	}

	return json.Unmarshal(bytesToParse, s)
}

// Question is the questions table row. Image payloads live in the
// question_images table and are attached separately.
type Question struct {
	ID           int64        `db:"id"`
	Question     string       `db:"question"`
	Options      StringSlice  `db:"options"`
	CorrectIndex int          `db:"correct_index"`
	Explanation  string       `db:"explanation"`
	Subject      string       `db:"subject"`
	Topic        string       `db:"topic"`
	Status       string       `db:"status"`
	CreatedAt    time.Time    `db:"created_at"`
	ImportedAt   sql.NullTime `db:"imported_at"`
	UserNotes    StringSlice  `db:"user_notes"`
}

func (Question) TableName() string {
	return "questions"
}

// ToDomain converts the row plus its image payloads to the domain record.
func (q *Question) ToDomain(images [][]byte) *domain.QuestionRecord {
	rec := &domain.QuestionRecord{
		ID:           q.ID,
		Images:       images,
		Question:     q.Question,
		Options:      []string(q.Options),
		CorrectIndex: q.CorrectIndex,
		Explanation:  q.Explanation,
		Subject:      q.Subject,
		Topic:        q.Topic,
		Status:       domain.QuestionStatus(q.Status),
		CreatedAt:    q.CreatedAt,
		UserNotes:    []string(q.UserNotes),
	}
	if q.ImportedAt.Valid {
		rec.ImportedAt = q.ImportedAt.Time
	}
	return rec
}

// FromDomain converts a domain record to its row form (images excluded).
func FromDomain(rec *domain.QuestionRecord) *Question {
	var importedAt sql.NullTime
	if !rec.ImportedAt.IsZero() {
		importedAt = sql.NullTime{Time: rec.ImportedAt, Valid: true}
	}
	return &Question{
		ID:           rec.ID,
		Question:     rec.Question,
		Options:      StringSlice(rec.Options),
		CorrectIndex: rec.CorrectIndex,
		Explanation:  rec.Explanation,
		Subject:      rec.Subject,
		Topic:        rec.Topic,
		Status:       string(rec.Status),
		CreatedAt:    rec.CreatedAt,
		ImportedAt:   importedAt,
		UserNotes:    StringSlice(rec.UserNotes),
	}
}
