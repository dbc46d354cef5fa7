package badger

import (
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// TemplateStorage implements the TemplateStorage interface for Badger.
// Columns are keyed by (template ID, column number) and replaced atomically.
type TemplateStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTemplateStorage creates a new TemplateStorage instance
func NewTemplateStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TemplateStorage {
	return &TemplateStorage{
		db:     db,
		logger: logger,
	}
}

func columnKey(templateID string, columnNumber int) string {
	return fmt.Sprintf("%s#col%04d", templateID, columnNumber)
}

func (s *TemplateStorage) SaveTemplate(tpl *models.ExtractionTemplate, columns []*models.TemplateColumn) error {
	if tpl.ID == "" {
		return fmt.Errorf("template ID is required")
	}

	now := time.Now()
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = now
	}
	tpl.UpdatedAt = now

	store := s.db.Store()
	return store.Badger().Update(func(tx *badgerdb.Txn) error {
		if err := store.TxUpsert(tx, tpl.ID, tpl); err != nil {
			return fmt.Errorf("failed to save template: %w", err)
		}
		for _, col := range columns {
			col.TemplateID = tpl.ID
			if err := store.TxUpsert(tx, columnKey(tpl.ID, col.ColumnNumber), col); err != nil {
				return fmt.Errorf("failed to save template column %s: %w", col.ExcelColumn, err)
			}
		}
		return nil
	})
}

func (s *TemplateStorage) GetTemplate(id string) (*models.ExtractionTemplate, error) {
	var tpl models.ExtractionTemplate
	if err := s.db.Store().Get(id, &tpl); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("template not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &tpl, nil
}

func (s *TemplateStorage) GetColumns(templateID string) ([]*models.TemplateColumn, error) {
	var columns []models.TemplateColumn
	err := s.db.Store().Find(&columns, badgerhold.Where("TemplateID").Eq(templateID).SortBy("ColumnNumber"))
	if err != nil {
		return nil, fmt.Errorf("failed to load template columns: %w", err)
	}

	result := make([]*models.TemplateColumn, len(columns))
	for i := range columns {
		result[i] = &columns[i]
	}
	return result, nil
}

// ReplaceColumns deletes and reinserts a template's columns atomically
func (s *TemplateStorage) ReplaceColumns(templateID string, columns []*models.TemplateColumn) error {
	existing, err := s.GetColumns(templateID)
	if err != nil {
		return err
	}

	store := s.db.Store()
	return store.Badger().Update(func(tx *badgerdb.Txn) error {
		for _, col := range existing {
			if err := store.TxDelete(tx, columnKey(templateID, col.ColumnNumber), &models.TemplateColumn{}); err != nil && err != badgerhold.ErrNotFound {
				return fmt.Errorf("failed to delete template column: %w", err)
			}
		}
		for _, col := range columns {
			col.TemplateID = templateID
			if err := store.TxUpsert(tx, columnKey(templateID, col.ColumnNumber), col); err != nil {
				return fmt.Errorf("failed to insert template column %s: %w", col.ExcelColumn, err)
			}
		}
		return nil
	})
}

func (s *TemplateStorage) ListTemplates(documentType string) ([]*models.ExtractionTemplate, error) {
	var templates []models.ExtractionTemplate
	var err error
	if documentType != "" {
		err = s.db.Store().Find(&templates, badgerhold.Where("DocumentType").Eq(documentType).SortBy("UpdatedAt"))
	} else {
		err = s.db.Store().Find(&templates, badgerhold.Where("ID").Ne("").SortBy("UpdatedAt"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	result := make([]*models.ExtractionTemplate, len(templates))
	for i := range templates {
		result[i] = &templates[i]
	}
	return result, nil
}

func (s *TemplateStorage) IncrementUsage(templateID string) error {
	tpl, err := s.GetTemplate(templateID)
	if err != nil {
		return err
	}
	tpl.UsageCount++
	tpl.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(tpl.ID, tpl); err != nil {
		return fmt.Errorf("failed to increment template usage: %w", err)
	}
	return nil
}

func (s *TemplateStorage) DeleteTemplate(id string) error {
	existing, err := s.GetColumns(id)
	if err != nil {
		return err
	}

	store := s.db.Store()
	return store.Badger().Update(func(tx *badgerdb.Txn) error {
		if err := store.TxDelete(tx, id, &models.ExtractionTemplate{}); err != nil && err != badgerhold.ErrNotFound {
			return fmt.Errorf("failed to delete template: %w", err)
		}
		for _, col := range existing {
			if err := store.TxDelete(tx, columnKey(id, col.ColumnNumber), &models.TemplateColumn{}); err != nil && err != badgerhold.ErrNotFound {
				return fmt.Errorf("failed to delete template column: %w", err)
			}
		}
		return nil
	})
}
