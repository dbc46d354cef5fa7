package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

const (
	directConfidence  = 0.95
	defaultConfidence = 0.93
	keywordConfidence = 0.8
	fuzzyPenalty      = 0.1
)

// Resolver maps template columns onto extracted field names. Direct and
// default mappings never touch the AI; the rest are batched through the LLM
// and corrected with fuzzy matching against the real field list.
type Resolver struct {
	fields      interfaces.FieldStorage
	transcripts interfaces.TranscriptStorage
	llm         interfaces.ExtractionClient
	config      *common.MappingConfig
	logger      arbor.ILogger
}

// NewResolver creates a mapping resolver
func NewResolver(fields interfaces.FieldStorage, transcripts interfaces.TranscriptStorage, llm interfaces.ExtractionClient, config *common.MappingConfig, logger arbor.ILogger) *Resolver {
	return &Resolver{
		fields:      fields,
		transcripts: transcripts,
		llm:         llm,
		config:      config,
		logger:      logger,
	}
}

// Resolve produces one MappingResult per column, in column order
func (r *Resolver) Resolve(ctx context.Context, columns []*models.TemplateColumn, documentIDs []string) ([]*models.MappingResult, error) {
	results := make([]*models.MappingResult, len(columns))

	var aiColumns []int
	for i, col := range columns {
		switch {
		case col.DBFieldPath != "":
			results[i] = &models.MappingResult{
				ExcelColumn:       col.ExcelColumn,
				DBFieldName:       col.DBFieldPath,
				Confidence:        directConfidence,
				MatchMethod:       models.MatchMethodDirect,
				DefaultValue:      col.DefaultValue,
				PostProcessType:   col.PostProcessType,
				PostProcessConfig: col.PostProcessConfig,
			}
		case col.HasDefault():
			results[i] = &models.MappingResult{
				ExcelColumn:       col.ExcelColumn,
				DBFieldName:       models.DefaultFieldSentinel,
				Confidence:        defaultConfidence,
				MatchMethod:       models.MatchMethodDefault,
				DefaultValue:      col.DefaultValue,
				PostProcessType:   col.PostProcessType,
				PostProcessConfig: col.PostProcessConfig,
			}
		default:
			aiColumns = append(aiColumns, i)
		}
	}

	if len(aiColumns) == 0 {
		return results, nil
	}

	// One read for all batches; AI batches must not hit the DB concurrently
	available, err := r.fields.ListFieldNames(documentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list available fields: %w", err)
	}
	transcript := r.loadTranscript(documentIDs)

	candidates := flattenSamples(available)
	r.resolveWithAI(ctx, columns, aiColumns, results, available, transcript, candidates)

	// Fill anything the AI path left open with direct fuzzy fallback
	for _, i := range aiColumns {
		if results[i] != nil {
			continue
		}
		results[i] = r.fallbackMatch(columns[i], candidates)
	}

	return results, nil
}

func (r *Resolver) loadTranscript(documentIDs []string) *models.Transcript {
	for _, id := range documentIDs {
		t, err := r.transcripts.GetTranscript(id)
		if err == nil && t != nil {
			return t
		}
	}
	return nil
}

// resolveWithAI batches the unresolved columns through the LLM, at most
// aiMaxParallel batches in flight, and fuzzy-corrects each suggestion.
func (r *Resolver) resolveWithAI(ctx context.Context, columns []*models.TemplateColumn, aiColumns []int, results []*models.MappingResult, available map[string][]models.FieldSample, transcript *models.Transcript, candidates []string) {
	batchSize := r.config.AIBatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	maxParallel := r.config.AIMaxParallel
	if maxParallel <= 0 {
		maxParallel = 3
	}

	var batches [][]int
	for start := 0; start < len(aiColumns); start += batchSize {
		end := start + batchSize
		if end > len(aiColumns) {
			end = len(aiColumns)
		}
		batches = append(batches, aiColumns[start:end])
	}

	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, batch := range batches {
		batch := batch
		wg.Add(1)
		common.SafeGo(r.logger, "mapping-batch", func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			suggestions, err := r.suggestBatch(ctx, columns, batch, available, transcript)
			if err != nil {
				r.logger.Warn().Err(err).Int("columns", len(batch)).Msg("AI mapping batch failed")
				return
			}

			mu.Lock()
			defer mu.Unlock()
			for _, i := range batch {
				s, ok := suggestions[columns[i].ExcelColumn]
				if !ok || s.SuggestedField == "" {
					continue
				}
				results[i] = r.acceptSuggestion(columns[i], s, candidates)
			}
		})
	}
	wg.Wait()
}

type aiSuggestion struct {
	ExcelColumn    string  `json:"excel_column"`
	SuggestedField string  `json:"suggested_field"`
	ExtractedValue string  `json:"extracted_value"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
}

// suggestBatch asks the LLM to map one batch of columns
func (r *Resolver) suggestBatch(ctx context.Context, columns []*models.TemplateColumn, batch []int, available map[string][]models.FieldSample, transcript *models.Transcript) (map[string]aiSuggestion, error) {
	prompt := buildSuggestionPrompt(columns, batch, available, transcript)

	text, _, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Mappings []aiSuggestion `json:"mappings"`
	}
	if err := json.Unmarshal([]byte(extractJSONBody(text)), &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse AI mapping response: %w", err)
	}

	out := make(map[string]aiSuggestion, len(decoded.Mappings))
	for _, s := range decoded.Mappings {
		out[s.ExcelColumn] = s
	}
	return out, nil
}

// acceptSuggestion fuzzy-corrects an AI suggestion against the real field
// list. Suggestions that match no real field closely enough are dropped so
// the fallback path can try.
func (r *Resolver) acceptSuggestion(col *models.TemplateColumn, s aiSuggestion, candidates []string) *models.MappingResult {
	threshold := r.config.FuzzyThreshold
	if threshold <= 0 {
		threshold = 0.7
	}

	field := s.SuggestedField
	confidence := s.Confidence

	if !containsString(candidates, field) {
		corrected, score := bestFuzzyMatch(field, candidates)
		if score < threshold {
			return nil
		}
		field = corrected
		confidence -= fuzzyPenalty
	}
	if confidence < 0 {
		confidence = 0
	}

	result := &models.MappingResult{
		ExcelColumn:       col.ExcelColumn,
		DBFieldName:       field,
		Confidence:        confidence,
		MatchMethod:       models.MatchMethodAI,
		Reasoning:         s.Reasoning,
		DefaultValue:      col.DefaultValue,
		PostProcessType:   col.PostProcessType,
		PostProcessConfig: col.PostProcessConfig,
	}
	if s.ExtractedValue != "" {
		result.ExtractedValue = models.StrPtr(s.ExtractedValue)
	}
	return result
}

// fallbackMatch resolves a column the AI path left open: the column's search
// keywords first, then a direct fuzzy match on the column name.
func (r *Resolver) fallbackMatch(col *models.TemplateColumn, candidates []string) *models.MappingResult {
	if result := r.keywordMatch(col, candidates); result != nil {
		return result
	}

	threshold := r.config.MatchThreshold
	if threshold <= 0 {
		threshold = 0.4
	}

	best := ""
	bestScore := 0.0
	for _, c := range candidates {
		if score := combinedMatchScore(col.ExcelColumn, c); score > bestScore {
			best = c
			bestScore = score
		}
	}

	if best == "" || bestScore < threshold {
		return &models.MappingResult{
			ExcelColumn:       col.ExcelColumn,
			MatchMethod:       models.MatchMethodUnmapped,
			DefaultValue:      col.DefaultValue,
			PostProcessType:   col.PostProcessType,
			PostProcessConfig: col.PostProcessConfig,
		}
	}

	return &models.MappingResult{
		ExcelColumn:       col.ExcelColumn,
		DBFieldName:       best,
		Confidence:        bestScore,
		MatchMethod:       models.MatchMethodFuzzy,
		DefaultValue:      col.DefaultValue,
		PostProcessType:   col.PostProcessType,
		PostProcessConfig: col.PostProcessConfig,
	}
}

// keywordMatch looks for a column search keyword contained in a candidate
// field name. First keyword with a hit wins, in keyword order.
func (r *Resolver) keywordMatch(col *models.TemplateColumn, candidates []string) *models.MappingResult {
	for _, keyword := range col.SearchKeywords {
		needle := normalizeName(keyword)
		if needle == "" {
			continue
		}
		for _, c := range candidates {
			if !strings.Contains(normalizeName(c), needle) {
				continue
			}
			return &models.MappingResult{
				ExcelColumn:       col.ExcelColumn,
				DBFieldName:       c,
				Confidence:        keywordConfidence,
				MatchMethod:       models.MatchMethodKeyword,
				DefaultValue:      col.DefaultValue,
				PostProcessType:   col.PostProcessType,
				PostProcessConfig: col.PostProcessConfig,
			}
		}
	}
	return nil
}

// buildSuggestionPrompt enumerates the batch's columns with their hints and
// the available extracted fields grouped by section with short samples.
func buildSuggestionPrompt(columns []*models.TemplateColumn, batch []int, available map[string][]models.FieldSample, transcript *models.Transcript) string {
	var sb strings.Builder
	sb.WriteString("You are mapping spreadsheet columns onto extracted document fields.\n")
	sb.WriteString("For each column below, pick the best matching field name from the available fields.\n\n")

	sb.WriteString("COLUMNS:\n")
	for _, i := range batch {
		col := columns[i]
		fmt.Fprintf(&sb, "- %q", col.ExcelColumn)
		if col.SourceSection != "" {
			fmt.Fprintf(&sb, " (section: %s)", col.SourceSection)
		}
		if col.SourceField != "" {
			fmt.Fprintf(&sb, " (field hint: %s)", col.SourceField)
		}
		if col.ExampleValue != "" {
			fmt.Fprintf(&sb, " (example: %s)", col.ExampleValue)
		}
		if col.PostProcessType != "" {
			fmt.Fprintf(&sb, " (transform: %s)", col.PostProcessType)
		}
		if len(col.SearchKeywords) > 0 {
			fmt.Fprintf(&sb, " (keywords: %s)", strings.Join(col.SearchKeywords, ", "))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nAVAILABLE FIELDS (grouped by section, with sample values):\n")
	for section, samples := range available {
		fmt.Fprintf(&sb, "[%s]\n", section)
		for _, s := range samples {
			sample := s.SampleValue
			if len(sample) > 60 {
				sample = sample[:60] + "..."
			}
			fmt.Fprintf(&sb, "  %s = %q\n", s.FieldName, sample)
		}
	}

	if transcript != nil && len(transcript.SectionIndex) > 0 {
		sb.WriteString("\nDOCUMENT SECTIONS:\n")
		for section, pages := range transcript.SectionIndex {
			fmt.Fprintf(&sb, "  %s (pages %d-%d)\n", section, pages.FirstPage, pages.LastPage)
		}
	}

	sb.WriteString("\nRespond with JSON only:\n")
	sb.WriteString(`{"mappings":[{"excel_column":"...","suggested_field":"...","extracted_value":"...","confidence":0.0,"reasoning":"..."}]}`)
	return sb.String()
}

// extractJSONBody trims prose and code fences around a JSON body
func extractJSONBody(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}

func flattenSamples(available map[string][]models.FieldSample) []string {
	var names []string
	seen := make(map[string]bool)
	for _, samples := range available {
		for _, s := range samples {
			if !seen[s.FieldName] {
				names = append(names, s.FieldName)
				seen[s.FieldName] = true
			}
		}
	}
	return names
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
