package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	document   interfaces.DocumentStorage
	field      interfaces.FieldStorage
	transcript interfaces.TranscriptStorage
	template   interfaces.TemplateStorage
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:         db,
		document:   NewDocumentStorage(db, logger),
		field:      NewFieldStorage(db, logger),
		transcript: NewTranscriptStorage(db, logger),
		template:   NewTemplateStorage(db, logger),
		logger:     logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// DocumentStorage returns the Document storage interface
func (m *Manager) DocumentStorage() interfaces.DocumentStorage {
	return m.document
}

// FieldStorage returns the Field storage interface
func (m *Manager) FieldStorage() interfaces.FieldStorage {
	return m.field
}

// TranscriptStorage returns the Transcript storage interface
func (m *Manager) TranscriptStorage() interfaces.TranscriptStorage {
	return m.transcript
}

// TemplateStorage returns the Template storage interface
func (m *Manager) TemplateStorage() interfaces.TemplateStorage {
	return m.template
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
