package domain

import "context"

// QuestionRepository is the persistent Record Store. All mutation goes
// through it; every call is atomic (a reader never observes a half-written
// record).
type QuestionRepository interface {
	// Save inserts a new record, assigns its id and returns it. CreatedAt
	// is set to now when zero.
	Save(ctx context.Context, record *QuestionRecord) (int64, error)

	// GetByID returns the record or a NOT_FOUND domain error.
	GetByID(ctx context.Context, id int64) (*QuestionRecord, error)

	// Update merges the non-nil fields of upd into the record. Returns a
	// NOT_FOUND domain error if the id is absent.
	Update(ctx context.Context, id int64, upd QuestionUpdate) error

	// Delete removes a record permanently. Deleting an absent id is a no-op.
	Delete(ctx context.Context, id int64) error

	// List returns all records ordered by creation time.
	List(ctx context.Context, descending bool) ([]*QuestionRecord, error)

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Subscribe registers a change listener. The returned function
	// unsubscribes it.
	Subscribe() (<-chan ChangeEvent, func())
}
