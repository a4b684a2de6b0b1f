package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "neuroloom/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetrievalConfig holds settings for the retrieval engine.
type RetrievalConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxPapers caps successful downloads per retrieval run (default 5).
	MaxPapers int `json:"max_papers" yaml:"max_papers"`

	// MaxPages caps paginated search requests per retrieval run (default 25).
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// PageSize is the number of records requested per search page (default 25).
	PageSize int `json:"page_size" yaml:"page_size"`

	// Concurrency is the number of simultaneous downloads within one page.
	// Values below 2 download sequentially.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// PapersDir is the artifact directory receiving {paperId}.pdf files.
	PapersDir string `json:"papers_dir" yaml:"papers_dir"`

	// Email is sent to Europe PMC as a contact address, optional.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// LoopBoundary selects which stages the quality loop repeats.
type LoopBoundary string

const (
	// BoundaryRetrieval repeats retrieval only; analysis runs once afterwards.
	BoundaryRetrieval LoopBoundary = "retrieval"
	// BoundaryAnalysis repeats retrieval, contradiction and hypothesis stages.
	BoundaryAnalysis LoopBoundary = "analysis"
	// BoundaryComposition also repeats report composition.
	BoundaryComposition LoopBoundary = "composition"
)

// LoopConfig holds settings for the quality loop.
type LoopConfig struct {
	// MaxIterations bounds the number of research cycles (default 3).
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// Boundary selects the stages inside the loop (default analysis).
	Boundary LoopBoundary `json:"boundary" yaml:"boundary"`
}

// AIProvider identifies the generation backend.
type AIProvider string

const (
	ProviderGemini AIProvider = "gemini"
	ProviderClaude AIProvider = "claude"
)

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Provider selects the backend: gemini or claude.
	Provider AIProvider `json:"provider" yaml:"provider"`

	// Model is the AI model identifier (e.g. "gemini-2.5-flash").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// PipelineConfig groups all stage configurations for one session.
type PipelineConfig struct {
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`
	Loop      LoopConfig      `json:"loop" yaml:"loop"`
	AI        AIConfig        `json:"ai" yaml:"ai"`
}
