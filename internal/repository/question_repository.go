package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"mockmaster/internal/domain"
	"mockmaster/internal/repository/models"
)

const questionColumns = `id, question, options, correct_index, explanation,
	subject, topic, status, created_at, imported_at, user_notes`

// Save implements domain.QuestionRepository
func (s *Store) Save(ctx context.Context, record *domain.QuestionRecord) (int64, error) {
	if record == nil {
		return 0, domain.NewInvalidInputError("cannot save nil record")
	}
	if err := record.Validate(); err != nil {
		return 0, err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	row := models.FromDomain(record)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, domain.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO questions (
		question, options, correct_index, explanation,
		subject, topic, status, created_at, imported_at, user_notes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Question,
		row.Options,
		row.CorrectIndex,
		row.Explanation,
		row.Subject,
		row.Topic,
		row.Status,
		row.CreatedAt,
		row.ImportedAt,
		row.UserNotes,
	)
	if err != nil {
		return 0, domain.NewStorageError("failed to insert question record", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, domain.NewStorageError("failed to read inserted record id", err)
	}

	for position, data := range record.Images {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO question_images (question_id, position, data) VALUES (?, ?, ?)`,
			id, position, data,
		); err != nil {
			return 0, domain.NewStorageError("failed to insert image payload", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, domain.NewStorageError("failed to commit record insert", err)
	}

	record.ID = id
	s.notifier.publish(domain.ChangeEvent{Type: domain.ChangeCreated, ID: id})
	return id, nil
}

// GetByID implements domain.QuestionRepository
func (s *Store) GetByID(ctx context.Context, id int64) (*domain.QuestionRecord, error) {
	var row models.Question
	err := s.db.GetContext(ctx, &row,
		`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewRecordNotFoundError(id)
		}
		return nil, domain.NewStorageError("failed to get question record", err)
	}

	images, err := s.imagesFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return row.ToDomain(images), nil
}

// Update implements domain.QuestionRepository. Only the non-nil fields of
// upd are written; the rest of the row is untouched.
func (s *Store) Update(ctx context.Context, id int64, upd domain.QuestionUpdate) error {
	if upd.IsEmpty() {
		return nil
	}

	set := make([]string, 0, 8)
	args := make([]interface{}, 0, 9)

	if upd.Question != nil {
		set = append(set, "question = ?")
		args = append(args, *upd.Question)
	}
	if upd.Options != nil {
		set = append(set, "options = ?")
		args = append(args, models.StringSlice(*upd.Options))
	}
	if upd.CorrectIndex != nil {
		set = append(set, "correct_index = ?")
		args = append(args, *upd.CorrectIndex)
	}
	if upd.Explanation != nil {
		set = append(set, "explanation = ?")
		args = append(args, *upd.Explanation)
	}
	if upd.Subject != nil {
		set = append(set, "subject = ?")
		args = append(args, *upd.Subject)
	}
	if upd.Topic != nil {
		set = append(set, "topic = ?")
		args = append(args, *upd.Topic)
	}
	if upd.Status != nil {
		set = append(set, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.UserNotes != nil {
		set = append(set, "user_notes = ?")
		args = append(args, models.StringSlice(*upd.UserNotes))
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return domain.NewStorageError("failed to update question record", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.NewStorageError("failed to read update result", err)
	}
	if affected == 0 {
		return domain.NewRecordNotFoundError(id)
	}

	s.notifier.publish(domain.ChangeEvent{Type: domain.ChangeUpdated, ID: id})
	return nil
}

// Delete implements domain.QuestionRepository. Deleting an id that is
// already gone is a no-op.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM question_images WHERE question_id = ?`, id); err != nil {
		return domain.NewStorageError("failed to delete image payloads", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return domain.NewStorageError("failed to delete question record", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.NewStorageError("failed to read delete result", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.NewStorageError("failed to commit record delete", err)
	}

	if affected > 0 {
		s.notifier.publish(domain.ChangeEvent{Type: domain.ChangeDeleted, ID: id})
	}
	return nil
}

// List implements domain.QuestionRepository. The full collection is
// returned ordered by creation time; subject/topic/search filtering is the
// caller's concern at this scale.
func (s *Store) List(ctx context.Context, descending bool) ([]*domain.QuestionRecord, error) {
	order := "ASC"
	if descending {
		order = "DESC"
	}

	var rows []models.Question
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+questionColumns+` FROM questions ORDER BY created_at `+order+`, id `+order)
	if err != nil {
		return nil, domain.NewStorageError("failed to list question records", err)
	}

	imagesByID, err := s.allImages(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]*domain.QuestionRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].ToDomain(imagesByID[rows[i].ID]))
	}
	return records, nil
}

// Clear implements domain.QuestionRepository
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM question_images`); err != nil {
		return domain.NewStorageError("failed to clear image payloads", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions`); err != nil {
		return domain.NewStorageError("failed to clear question records", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.NewStorageError("failed to commit clear", err)
	}

	s.logger.Info("Record store cleared")
	s.notifier.publish(domain.ChangeEvent{Type: domain.ChangeCleared})
	return nil
}

func (s *Store) imagesFor(ctx context.Context, id int64) ([][]byte, error) {
	var images [][]byte
	err := s.db.SelectContext(ctx, &images,
		`SELECT data FROM question_images WHERE question_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, domain.NewStorageError("failed to load image payloads", err)
	}
	return images, nil
}

func (s *Store) allImages(ctx context.Context) (map[int64][][]byte, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT question_id, data FROM question_images ORDER BY question_id, position`)
	if err != nil {
		return nil, domain.NewStorageError("failed to load image payloads", err)
	}
	defer rows.Close()

	imagesByID := make(map[int64][][]byte)
	for rows.Next() {
		var questionID int64
		var data []byte
		if err := rows.Scan(&questionID, &data); err != nil {
			return nil, domain.NewStorageError("failed to scan image payload", err)
		}
		imagesByID[questionID] = append(imagesByID[questionID], data)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("failed to iterate image payloads", err)
	}
	return imagesByID, nil
}

// Compile-time check that Store satisfies the repository port.
var _ domain.QuestionRepository = (*Store)(nil)
