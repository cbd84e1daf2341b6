package services

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/shelby-app/shelby/internal/blob"
	"github.com/shelby-app/shelby/internal/db"
	"github.com/shelby-app/shelby/internal/models"
	"github.com/shelby-app/shelby/internal/validation"
)

// UploadInput is a document upload: the payload plus its metadata and the
// already-authenticated principal performing the upload.
type UploadInput struct {
	Data     []byte
	Filename string
	MimeType string

	// Optional owning entity (models.DocumentOwner*).
	OwnerType string
	OwnerID   uint

	UploadedBy uint
}

func (in UploadInput) validate() error {
	v := validation.Violations{}
	validation.Required("filename", in.Filename, v)
	validation.MaxLen("filename", in.Filename, 255, v)
	validation.NotEmpty("data", in.Data, v)
	if in.OwnerType != "" {
		validation.OneOf("owner_type", in.OwnerType,
			[]string{models.DocumentOwnerPerson, models.DocumentOwnerGroup}, v)
	}
	return violationsToError(v)
}

// DocumentService keeps the file store and the metadata store consistent. No
// transaction spans both substrates, so it sequences them: files are written
// before metadata and deleted after it, and a failed metadata commit triggers
// a compensating file delete. The store may transiently hold a file without a
// row (cleaned by Sweep), never a row without a file.
type DocumentService struct {
	db    *gorm.DB
	files *blob.Store
}

func NewDocumentService(conn *gorm.DB, files *blob.Store) *DocumentService {
	return &DocumentService{db: conn, files: files}
}

// Create stores the payload and its metadata record atomically from the
// caller's point of view: either both exist afterwards or neither does.
func (s *DocumentService) Create(in UploadInput) (*models.Document, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	// Prepare step: the file write. Nothing references it yet, so a failure
	// here has no cleanup to do.
	handle, err := s.files.Put(in.Data)
	if err != nil {
		return nil, &StorageError{Op: "put", Err: err}
	}

	doc := models.Document{
		StorageKey: handle.Key,
		Filename:   in.Filename,
		MimeType:   in.MimeType,
		ByteSize:   handle.Size,
		OwnerType:  in.OwnerType,
		OwnerID:    in.OwnerID,
		UploadedBy: in.UploadedBy,
	}
	err = db.Transact(s.db, func(tx *gorm.DB) error {
		if in.OwnerType != "" {
			if err := ownerExists(tx, in.OwnerType, in.OwnerID); err != nil {
				return err
			}
		}
		if err := tx.Create(&doc).Error; err != nil {
			if db.IsConstraintViolation(err) {
				return fmt.Errorf("document metadata: %w", ErrConflict)
			}
			return err
		}
		return nil
	})
	if err != nil {
		// Compensating action: the metadata commit failed, so the file just
		// written must not survive it.
		if rmErr := s.files.Remove(handle.Key); rmErr != nil {
			slog.Warn("compensating file delete failed; left for sweep",
				"key", handle.Key, "error", rmErr)
		}
		return nil, err
	}
	return &doc, nil
}

// Get returns the metadata record.
func (s *DocumentService) Get(id uint) (*models.Document, error) {
	var doc models.Document
	err := s.db.First(&doc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// Open returns the metadata record together with the stored payload. A
// metadata row whose backing file is missing is a data-loss condition with no
// safe recovery; it surfaces as a ConsistencyError and is never repaired
// silently.
func (s *DocumentService) Open(id uint) (*models.Document, []byte, error) {
	doc, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.files.Get(doc.StorageKey)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cerr := &ConsistencyError{
				Entity: "document",
				Key:    doc.StorageKey,
				Detail: fmt.Sprintf("metadata row %d exists but the file is gone", doc.ID),
			}
			slog.Error("document backing file missing", "id", doc.ID, "key", doc.StorageKey)
			return nil, nil, cerr
		}
		return nil, nil, &StorageError{Op: "get", Key: doc.StorageKey, Err: err}
	}
	return doc, data, nil
}

// Delete removes a document. Metadata is the source of truth for "does this
// document still exist", so the row goes first inside a transaction; only
// after that commits is the file removed. A failed file delete leaves an
// orphan file, which the sweep can detect and clean.
func (s *DocumentService) Delete(id uint) error {
	var key string
	err := db.Transact(s.db, func(tx *gorm.DB) error {
		var doc models.Document
		if err := tx.First(&doc, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("document %d: %w", id, ErrNotFound)
			}
			return err
		}
		var refs int64
		if err := tx.Model(&models.Entry{}).Where("document_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("document %d is evidence for %d entries: %w", id, refs, ErrConflict)
		}
		key = doc.StorageKey
		return tx.Delete(&models.Document{}, id).Error
	})
	if err != nil {
		return err
	}
	if err := s.files.Remove(key); err != nil {
		slog.Warn("file delete after metadata commit failed; left for sweep",
			"key", key, "error", err)
	}
	return nil
}

// List returns one page of document metadata.
func (s *DocumentService) List(p Pagination) ([]models.Document, bool, bool, error) {
	return listPage[models.Document](s.db.Model(&models.Document{}), p,
		[]string{"id", "filename", "byte_size", "created_at"})
}

// Sweep removes files on disk that no metadata row references, honoring the
// grace period so in-flight uploads survive. It is the cleanup half of the
// create/delete protocols above.
func (s *DocumentService) Sweep(grace time.Duration) (int, error) {
	var keys []string
	if err := s.db.Model(&models.Document{}).Pluck("storage_key", &keys).Error; err != nil {
		return 0, fmt.Errorf("load storage keys: %w", err)
	}
	known := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		known[k] = struct{}{}
	}
	removed, err := s.files.Sweep(func(key string) bool {
		_, ok := known[key]
		return ok
	}, grace)
	if err != nil {
		return removed, &StorageError{Op: "sweep", Err: err}
	}
	if removed > 0 {
		slog.Info("orphan sweep removed files", "count", removed)
	}
	return removed, nil
}

func ownerExists(tx *gorm.DB, ownerType string, ownerID uint) error {
	var count int64
	var err error
	switch ownerType {
	case models.DocumentOwnerPerson:
		err = tx.Model(&models.Person{}).Where("id = ?", ownerID).Count(&count).Error
	case models.DocumentOwnerGroup:
		err = tx.Model(&models.Group{}).Where("id = ?", ownerID).Count(&count).Error
	}
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%s %d: %w", ownerType, ownerID, ErrNotFound)
	}
	return nil
}
