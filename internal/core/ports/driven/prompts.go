package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Returns the prompt content and any error encountered.
	// If the prompt is not found, implementations should return a sensible
	// default or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the pipeline.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptPlan decomposes a question into focused sub-queries.
	// The template expects %d (max sub-queries) and %s (question).
	PromptPlan = "plan"

	// PromptClaimExtract extracts structured claims from a chunk of
	// evidence. The template expects a %s placeholder for the chunk text.
	PromptClaimExtract = "claim_extract"

	// PromptSynthesis produces the final grounded answer.
	// The template expects %s (question), %s (sub-query list), and
	// %s (numbered evidence block).
	PromptSynthesis = "synthesis"

	// PromptAnalysis runs the domain-specific supply chain analysis.
	// The template expects %s (topic) and %s (evidence block).
	PromptAnalysis = "analysis"

	// PromptInsights surfaces trends, risks, or opportunities.
	// The template expects %s (scope), %s (aggregated context).
	PromptInsights = "insights"
)

// PromptStoreAware is an optional interface for services that can use
// custom prompts. Services implementing it can have their templates
// customised by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
