package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/ternarybob/scriba/internal/app"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/services/ingest"
)

// runJob discovers documents at a source and processes them as one job
func runJob(application *app.App, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	source := fs.String("source", "folder", "Source adapter to discover documents from")
	name := fs.String("name", "", "Job name")
	batch := fs.Int("batch", 0, "Maximum documents to ingest (0 = all)")
	task := fs.String("task", string(interfaces.TaskWithoutTemplateExtraction), "Extraction task")
	docType := fs.String("type", "", "Document type hint (e.g. bank_statement)")
	templateID := fs.String("template", "", "Template ID for template-guided extraction")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := ingest.Options{
		Task:         interfaces.ExtractionTask(*task),
		DocumentType: *docType,
	}
	if *templateID != "" {
		columns, err := application.StorageManager.TemplateStorage().GetColumns(*templateID)
		if err != nil {
			return err
		}
		opts.Task = interfaces.TaskTemplateGuidedExtraction
		opts.TemplateHints = ingest.RenderTemplateHints(columns)
	}

	job, err := application.IngestService.RunJob(context.Background(), *name, *source, *batch, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Job %s: %d completed, %d failed of %d documents\n",
		job.ID, job.DocumentsCompleted, job.DocumentsFailed, job.DocumentsTotal)
	return nil
}

// runProcess extracts one already-registered document
func runProcess(application *app.App, args []string) error {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	documentID := fs.String("document", "", "Document ID to process")
	task := fs.String("task", string(interfaces.TaskWithoutTemplateExtraction), "Extraction task")
	docType := fs.String("type", "", "Document type hint")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *documentID == "" {
		return fmt.Errorf("process requires -document")
	}

	result, err := application.IngestService.ProcessDocument(context.Background(), *documentID, ingest.Options{
		Task:         interfaces.ExtractionTask(*task),
		DocumentType: *docType,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Document %s: %s (%d pages processed, %d failed, %d fields, %d tokens)\n",
		*documentID, result.Status, result.PagesProcessed, result.PagesFailed,
		result.FieldsExtracted, result.TokensUsed)
	return nil
}
