package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/scriba/internal/app"
	"github.com/ternarybob/scriba/internal/services/export"
)

// runExport maps a template's columns against a job's extracted fields and
// writes the export file.
func runExport(application *app.App, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	jobID := fs.String("job", "", "Job ID to export")
	templateID := fs.String("template", "", "Template ID driving the column layout")
	format := fs.String("format", "xlsx", "Export format: xlsx or csv")
	outDir := fs.String("out", ".", "Output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *jobID == "" || *templateID == "" {
		return fmt.Errorf("export requires -job and -template")
	}

	columns, err := application.StorageManager.TemplateStorage().GetColumns(*templateID)
	if err != nil {
		return err
	}

	docs, err := application.StorageManager.DocumentStorage().ListDocumentsByJob(*jobID)
	if err != nil {
		return err
	}
	docIDs := make([]string, 0, len(docs))
	for _, doc := range docs {
		docIDs = append(docIDs, doc.ID)
	}

	mappings, err := application.MappingResolver.Resolve(context.Background(), columns, docIDs)
	if err != nil {
		return err
	}

	req := &export.Request{
		JobID:      *jobID,
		Mappings:   mappings,
		TemplateID: *templateID,
		Format:     export.Format(*format),
	}

	path := filepath.Join(*outDir, export.ExportFilename(*jobID, req.Format))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	result, err := application.ExportEngine.Export(req, f)
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d rows from %d documents to %s\n", result.RowCount, result.Documents, path)
	return nil
}
