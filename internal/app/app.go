package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/services/detect"
	"github.com/ternarybob/scriba/internal/services/export"
	"github.com/ternarybob/scriba/internal/services/ingest"
	"github.com/ternarybob/scriba/internal/services/llm"
	"github.com/ternarybob/scriba/internal/services/mapping"
	"github.com/ternarybob/scriba/internal/services/pdf"
	"github.com/ternarybob/scriba/internal/services/pipeline"
	"github.com/ternarybob/scriba/internal/services/prompts"
	"github.com/ternarybob/scriba/internal/sources"
	"github.com/ternarybob/scriba/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	// Extraction
	LLMClient   interfaces.ExtractionClient
	PDFResolver *pdf.Resolver
	Pipeline    *pipeline.Pipeline

	// Orchestration
	IngestService *ingest.Service
	Sweeper       *ingest.Sweeper

	// Mapping and export
	MappingResolver *mapping.Resolver
	TemplateMatcher *mapping.TemplateMatcher
	ExportEngine    *export.Engine
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	llmClient, err := llm.NewClient(&cfg.LLM, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	app.LLMClient = llmClient

	app.PDFResolver = pdf.NewResolver(&cfg.PDF, logger)

	signature := detect.NewSignatureDetector(&cfg.Detectors, logger)
	face := detect.NewFaceDetector(&cfg.Detectors, logger)

	app.Pipeline = pipeline.New(
		app.PDFResolver,
		app.LLMClient,
		prompts.NewRegistry(),
		signature,
		face,
		&cfg.Pipeline,
		logger,
	)

	app.IngestService = ingest.NewService(storageManager, app.Pipeline, app.LLMClient, cfg, logger)
	app.registerSources()

	app.Sweeper = ingest.NewSweeper(storageManager.DocumentStorage(), &cfg.Sweep, logger)

	app.MappingResolver = mapping.NewResolver(
		storageManager.FieldStorage(),
		storageManager.TranscriptStorage(),
		app.LLMClient,
		&cfg.Mapping,
		logger,
	)
	app.TemplateMatcher = mapping.NewTemplateMatcher(storageManager.TemplateStorage(), logger)
	app.ExportEngine = export.NewEngine(
		storageManager.DocumentStorage(),
		storageManager.FieldStorage(),
		storageManager.TemplateStorage(),
		&cfg.Export,
		logger,
	)

	logger.Info().
		Str("provider", cfg.LLM.DefaultProvider).
		Str("model", app.LLMClient.ModelVersion()).
		Msg("Application initialized")

	return app, nil
}

// registerSources wires the configured source adapters. The folder adapter
// is always available; others only when configured.
func (a *App) registerSources() {
	a.IngestService.RegisterSource(sources.NewFolderAdapter(&a.Config.Sources.Folder, a.Logger))

	if a.Config.Sources.Drive.RefreshToken != "" {
		a.IngestService.RegisterSource(sources.NewDriveAdapter(&a.Config.Sources.Drive, a.Logger))
	}
}

// Start begins background tasks (the stale-document sweep)
func (a *App) Start() error {
	return a.Sweeper.Start()
}

// Close releases all application resources
func (a *App) Close() {
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}
	if a.LLMClient != nil {
		if err := a.LLMClient.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("LLM client close failed")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage close failed")
		}
	}
}
