package models

// The nine GitHub-hosted models Aurelis routes between. Model IDs match the
// GitHub Models inference endpoint.
const (
	ModelGPT4o        = "gpt-4o"
	ModelGPT4oMini    = "gpt-4o-mini"
	ModelO1Preview    = "o1-preview"
	ModelO1Mini       = "o1-mini"
	ModelCodestral    = "codestral-2501"
	ModelCommandR     = "cohere-command-r"
	ModelCommandRPlus = "cohere-command-r-plus"
	ModelLlama70B     = "meta-llama-3.1-70b-instruct"
	ModelMistralLarge = "mistral-large-2407"
)

// Capability describes a hosted model's limits and pricing.
type Capability struct {
	ID                string  `json:"id"`
	OwnedBy           string  `json:"owned_by"`
	Description       string  `json:"description"`
	ContextTokens     int     `json:"max_context_tokens"`
	MaxOutputTokens   int     `json:"max_output_tokens"`
	CostPer1MInput    float64 `json:"cost_per_1m_input_tokens"`
	CostPer1MOutput   float64 `json:"cost_per_1m_output_tokens"`
	LatencyTier       string  `json:"latency_tier"` // fast / standard / slow
	SupportsStreaming bool    `json:"supports_streaming"`
	SupportsSystem    bool    `json:"supports_system"` // o1 models reject system messages
}

var catalog = map[string]Capability{
	ModelGPT4o: {
		ID: ModelGPT4o, OwnedBy: "openai",
		Description:     "General purpose flagship, strongest all-round coding model",
		ContextTokens:   128000, MaxOutputTokens: 16384,
		CostPer1MInput:  2.50, CostPer1MOutput: 10.00,
		LatencyTier:     "standard", SupportsStreaming: true, SupportsSystem: true,
	},
	ModelGPT4oMini: {
		ID: ModelGPT4oMini, OwnedBy: "openai",
		Description:     "Fast and cheap, good for explanations and documentation",
		ContextTokens:   128000, MaxOutputTokens: 16384,
		CostPer1MInput:  0.15, CostPer1MOutput: 0.60,
		LatencyTier:     "fast", SupportsStreaming: true, SupportsSystem: true,
	},
	ModelO1Preview: {
		ID: ModelO1Preview, OwnedBy: "openai",
		Description:     "Deep reasoning for hard debugging and optimization",
		ContextTokens:   128000, MaxOutputTokens: 32768,
		CostPer1MInput:  15.00, CostPer1MOutput: 60.00,
		LatencyTier:     "slow", SupportsStreaming: false, SupportsSystem: false,
	},
	ModelO1Mini: {
		ID: ModelO1Mini, OwnedBy: "openai",
		Description:     "Cheaper reasoning model for code analysis",
		ContextTokens:   128000, MaxOutputTokens: 65536,
		CostPer1MInput:  3.00, CostPer1MOutput: 12.00,
		LatencyTier:     "slow", SupportsStreaming: false, SupportsSystem: false,
	},
	ModelCodestral: {
		ID: ModelCodestral, OwnedBy: "mistral",
		Description:     "Code specialist tuned for generation and completion",
		ContextTokens:   262144, MaxOutputTokens: 8192,
		CostPer1MInput:  0.30, CostPer1MOutput: 0.90,
		LatencyTier:     "fast", SupportsStreaming: true, SupportsSystem: true,
	},
	ModelCommandR: {
		ID: ModelCommandR, OwnedBy: "cohere",
		Description:     "Grounded generation, good for documentation tasks",
		ContextTokens:   128000, MaxOutputTokens: 4096,
		CostPer1MInput:  0.15, CostPer1MOutput: 0.60,
		LatencyTier:     "fast", SupportsStreaming: true, SupportsSystem: true,
	},
	ModelCommandRPlus: {
		ID: ModelCommandRPlus, OwnedBy: "cohere",
		Description:     "Larger Command variant for complex multi-file work",
		ContextTokens:   128000, MaxOutputTokens: 4096,
		CostPer1MInput:  2.50, CostPer1MOutput: 10.00,
		LatencyTier:     "standard", SupportsStreaming: true, SupportsSystem: true,
	},
	ModelLlama70B: {
		ID: ModelLlama70B, OwnedBy: "meta",
		Description:     "Open-weights generalist, solid refactoring fallback",
		ContextTokens:   131072, MaxOutputTokens: 8192,
		CostPer1MInput:  0.27, CostPer1MOutput: 0.85,
		LatencyTier:     "standard", SupportsStreaming: true, SupportsSystem: true,
	},
	ModelMistralLarge: {
		ID: ModelMistralLarge, OwnedBy: "mistral",
		Description:     "Strong multilingual generalist and security reviewer",
		ContextTokens:   131072, MaxOutputTokens: 8192,
		CostPer1MInput:  2.00, CostPer1MOutput: 6.00,
		LatencyTier:     "standard", SupportsStreaming: true, SupportsSystem: true,
	},
}

// Lookup returns the capability entry for a model ID.
func Lookup(id string) (Capability, bool) {
	c, ok := catalog[id]
	return c, ok
}

// Catalog returns all known models in stable order.
func Catalog() []Capability {
	ids := []string{
		ModelGPT4o, ModelGPT4oMini, ModelO1Preview, ModelO1Mini,
		ModelCodestral, ModelCommandR, ModelCommandRPlus,
		ModelLlama70B, ModelMistralLarge,
	}
	out := make([]Capability, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog[id])
	}
	return out
}

// EstimateCost returns the dollar cost of a request given its token usage.
func EstimateCost(model string, u Usage) float64 {
	c, ok := catalog[model]
	if !ok {
		return 0
	}
	return float64(u.PromptTokens)/1_000_000*c.CostPer1MInput +
		float64(u.CompletionTokens)/1_000_000*c.CostPer1MOutput
}
