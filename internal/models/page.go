package models

// ContentType says how a page was presented to the LLM
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

// TokenUsage accounts for one LLM call
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	ReasoningTokens  int `json:"reasoning_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Detection is one signature or face hit on a page image
type Detection struct {
	BBox        [4]float64 `json:"bbox"` // xmin, ymin, xmax, ymax
	Confidence  float64    `json:"confidence"`
	IsHit       bool       `json:"is_hit"`
	ImageBase64 string     `json:"image_base64,omitempty"`
}

// PageResult is the final output of the pipeline for one page. Exactly one
// of HierarchicalData (non-empty) or Error is set.
type PageResult struct {
	DocumentID  string      `json:"document_id"`
	PageNumber  int         `json:"page_number"` // 1-based
	ContentType ContentType `json:"content_type"`

	HierarchicalData *Value `json:"hierarchical_data,omitempty"`

	Signatures   []Detection `json:"signatures,omitempty"`
	Faces        []Detection `json:"faces,omitempty"`
	DebugOverlay string      `json:"debug_overlay,omitempty"`

	TokenUsage   TokenUsage `json:"token_usage"`
	FinishReason string     `json:"finish_reason,omitempty"`
	DurationMs   int64      `json:"duration_ms"`
	Retries      int        `json:"retries"`

	Error       string `json:"error,omitempty"`
	FailedStage string `json:"failed_stage,omitempty"`
	Cancelled   bool   `json:"cancelled,omitempty"`
	TimedOut    bool   `json:"timed_out,omitempty"`
}

// Succeeded reports whether the page produced usable data
func (r *PageResult) Succeeded() bool {
	return r.Error == "" && !r.Cancelled && !r.TimedOut && r.HierarchicalData != nil && !r.HierarchicalData.IsEmpty()
}

// TextBlock is a positioned run of text on a page
type TextBlock struct {
	Text string     `json:"text"`
	BBox [4]float64 `json:"bbox"`
}

// ImageBlock is a discrete embedded image region on a page
type ImageBlock struct {
	BBox        [4]float64 `json:"bbox"`
	ImageBase64 string     `json:"image_base64,omitempty"`
}

// TextData is the raw text extraction for one page
type TextData struct {
	Text        string       `json:"text"`
	Blocks      []TextBlock  `json:"blocks"`
	TextBlocks  int          `json:"text_blocks"`
	ImageBlocks []ImageBlock `json:"image_blocks"`
}

// TextQuality scores how usable the selectable text of a page is
type TextQuality struct {
	CharCount        int     `json:"char_count"`
	WordCount        int     `json:"word_count"`
	Confidence       float64 `json:"confidence"` // [0,1]
	IsSelectable     bool    `json:"is_selectable"`
	TextBlocksCount  int     `json:"text_blocks_count"`
	ImageBlocksCount int     `json:"image_blocks_count"`
}
