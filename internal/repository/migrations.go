package repository

import (
	"fmt"

	"mockmaster/internal/domain"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// CurrentSchemaVersion is the version this build of the code expects.
const CurrentSchemaVersion = 3

// A migration moves the store from version-1 to version. Steps must be
// idempotent and must not touch fields they do not own, so a failure
// mid-step can be retried safely on the next startup.
type migration struct {
	version int
	name    string
	apply   func(tx *sqlx.Tx) error
}

var migrations = []migration{
	{
		version: 1,
		name:    "base schema",
		apply:   migrateV1BaseSchema,
	},
	{
		version: 2,
		name:    "subject/topic defaults, normalize single image",
		apply:   migrateV2SubjectTopicImages,
	},
	{
		version: 3,
		name:    "status field",
		apply:   migrateV3Status,
	},
}

// runMigrations brings the persisted schema up to CurrentSchemaVersion.
// Each pending step runs once, in order, inside its own transaction; the
// version bump commits atomically with the step.
func runMigrations(db *sqlx.DB, logger *zap.Logger) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`); err != nil {
		return domain.NewStorageError("failed to create schema_version table", err)
	}

	current, err := schemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		logger.Info("Running schema migration",
			zap.Int("version", m.version),
			zap.String("name", m.name))

		tx, err := db.Beginx()
		if err != nil {
			return domain.NewMigrationError(m.version, err)
		}
		if err := m.apply(tx); err != nil {
			tx.Rollback()
			return domain.NewMigrationError(m.version, err)
		}
		if err := setSchemaVersion(tx, m.version); err != nil {
			tx.Rollback()
			return domain.NewMigrationError(m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return domain.NewMigrationError(m.version, err)
		}
		current = m.version
	}

	return nil
}

func schemaVersion(db *sqlx.DB) (int, error) {
	var version int
	err := db.Get(&version, `SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err != nil {
		return 0, domain.NewStorageError("failed to read schema version", err)
	}
	return version, nil
}

func setSchemaVersion(tx *sqlx.Tx, version int) error {
	if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version)
	return err
}

// migrateV1BaseSchema creates the legacy v1 shape: a single image column,
// no subject/topic classification and no status tracking.
func migrateV1BaseSchema(tx *sqlx.Tx) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			image BLOB,
			question TEXT NOT NULL DEFAULT '',
			options TEXT NOT NULL DEFAULT '[]',
			correct_index INTEGER NOT NULL DEFAULT -1,
			explanation TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			user_notes TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_created_at ON questions(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrateV2SubjectTopicImages adds subject/topic with defaults and moves the
// legacy single image column into the ordered question_images table.
func migrateV2SubjectTopicImages(tx *sqlx.Tx) error {
	if err := addColumnIfMissing(tx, "questions", "subject", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return err
	}
	if err := addColumnIfMissing(tx, "questions", "topic", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE questions SET subject = ? WHERE subject = ''`, domain.DefaultSubject); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE questions SET topic = ? WHERE topic = ''`, domain.DefaultTopic); err != nil {
		return err
	}

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS question_images (
		question_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (question_id, position)
	)`); err != nil {
		return err
	}

	// Normalize the legacy single-image form: copy each blob to position 0,
	// then null out the old column. Guarded so a retried run cannot
	// duplicate rows.
	if _, err := tx.Exec(`INSERT INTO question_images (question_id, position, data)
		SELECT id, 0, image FROM questions
		WHERE image IS NOT NULL
		AND id NOT IN (SELECT question_id FROM question_images WHERE position = 0)`); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE questions SET image = NULL WHERE image IS NOT NULL`); err != nil {
		return err
	}
	return nil
}

// migrateV3Status adds status tracking, defaulting every pre-existing row to
// done, plus the import timestamp the backup subsystem records.
func migrateV3Status(tx *sqlx.Tx) error {
	if err := addColumnIfMissing(tx, "questions", "status", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE questions SET status = ? WHERE status = ''`, string(domain.StatusDone)); err != nil {
		return err
	}
	return addColumnIfMissing(tx, "questions", "imported_at", "TIMESTAMP")
}

// addColumnIfMissing makes ALTER TABLE ADD COLUMN idempotent; sqlite errors
// on a duplicate column otherwise.
func addColumnIfMissing(tx *sqlx.Tx, table, column, definition string) error {
	exists, err := columnExists(tx, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = tx.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition))
	return err
}

func columnExists(tx *sqlx.Tx, table, column string) (bool, error) {
	rows, err := tx.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue interface{}
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
