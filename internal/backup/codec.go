// Package backup implements export and import of the Record Store as a
// single portable zip archive: a data.json manifest plus an images/
// directory holding the raw payloads.
package backup

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"mockmaster/internal/domain"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	manifestName = "data.json"
	imagesDir    = "images/"
)

// ManifestEntry is one record in data.json. Image payloads are referenced
// by file name, never embedded.
type ManifestEntry struct {
	ID           int64    `json:"id,omitempty"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
	Subject      string   `json:"subject"`
	Topic        string   `json:"topic"`
	Status       string   `json:"status,omitempty"`
	CreatedAt    string   `json:"createdAt"`
	UserNotes    []string `json:"userNotes"`

	ImageFileNames []string `json:"imageFileNames,omitempty"`
	// ImageFileName is the legacy single-image field written by old
	// exports; accepted on import only.
	ImageFileName string `json:"imageFileName,omitempty"`
}

// Codec reads and writes backup archives against a Record Store.
type Codec struct {
	repo   domain.QuestionRepository
	logger *zap.Logger
}

func NewCodec(repo domain.QuestionRepository, logger *zap.Logger) *Codec {
	return &Codec{repo: repo, logger: logger}
}

// ArchiveName returns the timestamped download name for an export.
func ArchiveName(now time.Time) string {
	return fmt.Sprintf("MockMaster_Backup_%s.zip", now.Format("2006-01-02"))
}

// Export serializes the full store into w as a zip archive and returns the
// number of records written.
func (c *Codec) Export(ctx context.Context, w io.Writer) (int, error) {
	records, err := c.repo.List(ctx, false)
	if err != nil {
		return 0, err
	}

	zw := zip.NewWriter(w)
	manifest := make([]ManifestEntry, 0, len(records))

	for _, rec := range records {
		entry := ManifestEntry{
			ID:           rec.ID,
			Question:     rec.Question,
			Options:      emptyIfNil(rec.Options),
			CorrectIndex: rec.CorrectIndex,
			Explanation:  rec.Explanation,
			Subject:      rec.Subject,
			Topic:        rec.Topic,
			Status:       string(rec.Status),
			CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
			UserNotes:    emptyIfNil(rec.UserNotes),
		}

		for idx, data := range rec.Images {
			// Record id + image index + a fresh ULID: unique within the
			// archive and across repeated exports.
			name := fmt.Sprintf("img_%d_%d_%s.jpg", rec.ID, idx, ulid.Make())
			fw, err := zw.Create(imagesDir + name)
			if err != nil {
				return 0, domain.NewInternalError("failed to create archive image entry", err)
			}
			if _, err := fw.Write(data); err != nil {
				return 0, domain.NewInternalError("failed to write archive image entry", err)
			}
			entry.ImageFileNames = append(entry.ImageFileNames, name)
		}

		manifest = append(manifest, entry)
	}

	mw, err := zw.Create(manifestName)
	if err != nil {
		return 0, domain.NewInternalError("failed to create archive manifest", err)
	}
	enc := json.NewEncoder(mw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return 0, domain.NewInternalError("failed to encode archive manifest", err)
	}

	if err := zw.Close(); err != nil {
		return 0, domain.NewInternalError("failed to finalize archive", err)
	}

	c.logger.Info("Exported backup archive", zap.Int("records", len(manifest)))
	return len(manifest), nil
}

// Import reads a backup archive and inserts every salvageable record as a
// new record (archive ids are discarded so existing data is never
// collided with). Returns the number of records imported.
//
// A missing or unparsable manifest aborts before anything is written. A
// single unreadable image is skipped with a warning; its record is still
// imported when it keeps at least one image or a non-empty question.
func (c *Codec) Import(ctx context.Context, r io.ReaderAt, size int64) (int, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return 0, domain.NewError(domain.ErrInvalidArchive, "Invalid backup file: not a readable archive", err)
	}

	manifest, err := readManifest(zr)
	if err != nil {
		return 0, err
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	now := time.Now()
	count := 0

	for i, entry := range manifest {
		images := c.collectImages(files, entry)

		// Defensive filter against corrupt entries: nothing recoverable.
		if len(images) == 0 && entry.Question == "" {
			c.logger.Warn("Skipping unsalvageable archive entry", zap.Int("entry", i))
			continue
		}

		rec := entryToRecord(entry, images, now)
		if _, err := c.repo.Save(ctx, rec); err != nil {
			if domain.HasCode(err, domain.ErrInvalidInput) {
				// One inconsistent entry must not abort the rest.
				c.logger.Warn("Skipping invalid archive entry",
					zap.Int("entry", i), zap.Error(err))
				continue
			}
			return count, err
		}
		count++
	}

	c.logger.Info("Imported backup archive",
		zap.Int("records", count),
		zap.Int("entries", len(manifest)))
	return count, nil
}

func readManifest(zr *zip.Reader) ([]ManifestEntry, error) {
	f, err := zr.Open(manifestName)
	if err != nil {
		return nil, domain.NewInvalidArchiveError("Invalid backup file: data.json missing")
	}
	defer f.Close()

	var manifest []ManifestEntry
	if err := json.NewDecoder(f).Decode(&manifest); err != nil {
		return nil, domain.NewError(domain.ErrInvalidArchive, "Invalid backup file: data.json unreadable", err)
	}
	return manifest, nil
}

// collectImages resolves the entry's referenced image files, preserving
// order. The legacy single-filename field is honored when the array form is
// absent.
func (c *Codec) collectImages(files map[string]*zip.File, entry ManifestEntry) [][]byte {
	names := entry.ImageFileNames
	if len(names) == 0 && entry.ImageFileName != "" {
		names = []string{entry.ImageFileName}
	}

	var images [][]byte
	for _, name := range names {
		f, ok := files[imagesDir+name]
		if !ok {
			c.logger.Warn("Archive image missing, skipping",
				zap.String("file", name),
				zap.Int64("archive_id", entry.ID))
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			c.logger.Warn("Archive image unreadable, skipping",
				zap.String("file", name),
				zap.Int64("archive_id", entry.ID),
				zap.Error(err))
			continue
		}
		images = append(images, data)
	}
	return images
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func entryToRecord(entry ManifestEntry, images [][]byte, importedAt time.Time) *domain.QuestionRecord {
	status := domain.QuestionStatus(entry.Status)
	switch status {
	case domain.StatusProcessing, domain.StatusDone, domain.StatusError:
	default:
		// Archives from before status tracking carry no status field.
		status = domain.StatusDone
	}

	subject := entry.Subject
	if subject == "" {
		subject = domain.DefaultSubject
	}
	topic := entry.Topic
	if topic == "" {
		topic = domain.DefaultTopic
	}

	createdAt, err := time.Parse(time.RFC3339, entry.CreatedAt)
	if err != nil {
		createdAt = importedAt
	}

	return &domain.QuestionRecord{
		Images:       images,
		Question:     entry.Question,
		Options:      emptyIfNil(entry.Options),
		CorrectIndex: entry.CorrectIndex,
		Explanation:  entry.Explanation,
		Subject:      subject,
		Topic:        topic,
		Status:       status,
		CreatedAt:    createdAt,
		ImportedAt:   importedAt,
		UserNotes:    emptyIfNil(entry.UserNotes),
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
