package catalog

// Fallback returns the hand-curated model set used when the live catalog
// is unreachable. It spans every price band so tier draws stay possible
// during an outage. Prices are USD per million tokens, checked against
// provider price pages; they drift, but only pre-flight estimates depend
// on them.
func Fallback() []Model {
	return []Model{
		{ID: "meta-llama/llama-3.3-70b-instruct:free", Name: "Llama 3.3 70B (free)", Provider: "meta-llama", Free: true, ContextLength: 131072},
		{ID: "google/gemma-3-27b-it:free", Name: "Gemma 3 27B (free)", Provider: "google", Free: true, ContextLength: 96000},
		{ID: "mistralai/mistral-small-3.1:free", Name: "Mistral Small 3.1 (free)", Provider: "mistralai", Free: true, ContextLength: 128000},
		{ID: "openai/gpt-4o-mini", Name: "GPT-4o mini", Provider: "openai", InputPerMTok: 0.15, OutputPerMTok: 0.60, AvgPerMTok: 0.375, ContextLength: 128000},
		{ID: "google/gemini-2.0-flash-001", Name: "Gemini 2.0 Flash", Provider: "google", InputPerMTok: 0.10, OutputPerMTok: 0.40, AvgPerMTok: 0.25, ContextLength: 1000000},
		{ID: "anthropic/claude-3.5-haiku", Name: "Claude 3.5 Haiku", Provider: "anthropic", InputPerMTok: 0.80, OutputPerMTok: 4.0, AvgPerMTok: 2.4, ContextLength: 200000},
		{ID: "deepseek/deepseek-chat", Name: "DeepSeek V3", Provider: "deepseek", InputPerMTok: 0.27, OutputPerMTok: 1.10, AvgPerMTok: 0.685, ContextLength: 64000},
		{ID: "openai/gpt-4o", Name: "GPT-4o", Provider: "openai", InputPerMTok: 2.50, OutputPerMTok: 10.0, AvgPerMTok: 6.25, ContextLength: 128000},
		{ID: "anthropic/claude-sonnet-4", Name: "Claude Sonnet 4", Provider: "anthropic", InputPerMTok: 3.0, OutputPerMTok: 15.0, AvgPerMTok: 9.0, ContextLength: 200000},
		{ID: "anthropic/claude-opus-4", Name: "Claude Opus 4", Provider: "anthropic", InputPerMTok: 15.0, OutputPerMTok: 75.0, AvgPerMTok: 45.0, ContextLength: 200000},
		{ID: "openai/o1", Name: "OpenAI o1", Provider: "openai", InputPerMTok: 15.0, OutputPerMTok: 60.0, AvgPerMTok: 37.5, ContextLength: 200000},
	}
}
