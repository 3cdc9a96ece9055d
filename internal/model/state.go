package model

// WorkflowState is the single typed record passed between workflow nodes.
// It is owned exclusively by one workflow execution; nodes
// receive a mutable pointer and return it. No two nodes run concurrently
// over the same state.
type WorkflowState struct {
	// --- request context ---

	SessionID    SessionID
	ArtifactKind ArtifactKind
	Provider     string
	Model        string
	ImageModel   string
	APIKeys      map[string]string
	Preferences  map[string]string
	ReuseCache   bool

	Sources []Source

	// --- ingest outputs ---

	RawContent  RawContent
	InputFormat string
	InputPath   string

	// --- summarize outputs ---

	SummaryContent SummaryContent

	// --- structure outputs ---

	StructuredContent StructuredContent

	// --- document-specific outputs ---

	OutputPath string

	// --- podcast outputs ---

	PodcastTitle       string
	PodcastDescription string
	PodcastDialogue    []PodcastLine
	PodcastAudioPath   string
	PodcastAudioB64    string
	PodcastDurationSec float64

	// --- mind-map outputs ---

	MindMapTree *MindMapNode

	// --- FAQ outputs ---

	FAQData *FAQData

	// --- image outputs ---

	ImageData *ImageData

	// --- control fields ---

	Errors      []error
	Metadata    map[string]any
	RetryCount  int
	MaxRetries  int
	Completed   bool
	Cancelled   bool

	// StepNumber/TotalSteps are assigned by the compiled graph for progress
	// display; a node may override StepNumber from
	// Metadata["step_numbers"][nodeName] when embedded in a wrapper graph.
	StepNumber int
	TotalSteps int
}

// PodcastLine is one line of podcast dialogue.
type PodcastLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// MindMapNode is a recursively nested mind-map node.
type MindMapNode struct {
	Title    string         `json:"title,omitempty"`
	Summary  string         `json:"summary,omitempty"`
	Label    string         `json:"label"`
	Children []*MindMapNode `json:"children,omitempty"`
}

// FAQItem is one question/answer pair with its tags; tag colors live in
// FAQData.TagColors.
type FAQItem struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Tags     []string `json:"tags,omitempty"`
}

// FAQData is the full FAQ generation result.
type FAQData struct {
	Title     string            `json:"title,omitempty"`
	Items     []FAQItem         `json:"items"`
	TagColors map[string]string `json:"tag_colors,omitempty"`
}

// ImageData is the result of image_generate/image_edit.
type ImageData struct {
	Bytes  []byte `json:"bytes"`
	Format string `json:"format"`
	Prompt string `json:"prompt"`
}

// NewWorkflowState constructs a zero-value state with initialized maps
// so nodes can assign into them without nil checks.
func NewWorkflowState() *WorkflowState {
	return &WorkflowState{
		APIKeys:     map[string]string{},
		Preferences: map[string]string{},
		Metadata:    map[string]any{},
	}
}

// AppendError records a non-panicking node failure.
func (s *WorkflowState) AppendError(err error) {
	if err == nil {
		return
	}
	s.Errors = append(s.Errors, err)
}

// LastError returns the most recently appended error, or nil.
func (s *WorkflowState) LastError() error {
	if len(s.Errors) == 0 {
		return nil
	}
	return s.Errors[len(s.Errors)-1]
}
