package ingest

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

const defaultSweepMaxAge = 30 * time.Minute

// Sweeper periodically parks documents stuck in processing, typically
// after a crash mid-pipeline. Documents with any processed pages go to
// needs_review so their partial output stays explorable; the rest fail.
type Sweeper struct {
	storage interfaces.DocumentStorage
	config  *common.SweepConfig
	logger  arbor.ILogger
	cron    *cron.Cron
}

// NewSweeper creates a stale-document sweeper
func NewSweeper(storage interfaces.DocumentStorage, config *common.SweepConfig, logger arbor.ILogger) *Sweeper {
	return &Sweeper{
		storage: storage,
		config:  config,
		logger:  logger,
	}
}

// Start schedules the sweep. No-op when disabled.
func (s *Sweeper) Start() error {
	if !s.config.Enabled {
		s.logger.Debug().Msg("Stale document sweep disabled")
		return nil
	}

	schedule := s.config.Schedule
	if schedule == "" {
		schedule = "*/10 * * * *"
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	s.cron.Start()

	s.logger.Info().Str("schedule", schedule).Msg("Stale document sweep started")
	return nil
}

// Stop halts the schedule, waiting for a running sweep to finish
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep parks every processing document older than the configured max age
func (s *Sweeper) Sweep() {
	maxAge := defaultSweepMaxAge
	if d, err := time.ParseDuration(s.config.MaxAge); err == nil && d > 0 {
		maxAge = d
	}
	cutoff := time.Now().Add(-maxAge)

	stale, err := s.storage.ListStaleProcessing(cutoff.Unix())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Stale document sweep failed")
		return
	}
	if len(stale) == 0 {
		return
	}

	parked := 0
	for _, doc := range stale {
		if doc.PagesProcessed > 0 {
			doc.Status = models.DocumentStatusNeedsReview
		} else {
			doc.Status = models.DocumentStatusFailed
		}
		doc.ErrorMessage = fmt.Sprintf("processing stalled for more than %s", maxAge)
		doc.ErrorType = "stale"
		doc.UpdatedAt = time.Now()

		if err := s.storage.UpdateDocument(doc); err != nil {
			s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to park stale document")
			continue
		}

		if doc.Status == models.DocumentStatusNeedsReview {
			entry := &models.ReviewEntry{
				ID:          common.NewReviewID(),
				DocumentID:  doc.ID,
				JobID:       doc.JobID,
				Reason:      doc.ErrorMessage,
				FailedPages: doc.FailedPages,
				CreatedAt:   time.Now(),
			}
			if err := s.storage.SaveReviewEntry(entry); err != nil {
				s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to queue review entry")
			}
		}
		parked++
	}

	s.logger.Info().Int("parked", parked).Msg("Stale document sweep completed")
}
