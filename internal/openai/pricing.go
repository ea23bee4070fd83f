package openai

// Informational per-model rate tables. Costs computed from them are
// estimates surfaced in the status log, never billed by this service.
var (
	// Currency per minute of transcribed audio.
	TranscriptionRates = map[string]float64{
		"whisper-1":              0.006,
		"gpt-4o-mini-transcribe": 0.003,
	}
	// Currency per 1000 generated tokens.
	GenerationRates = map[string]float64{
		"gpt-4o-mini": 0.00015,
		"gpt-4o":      0.005,
	}
)

// TranscriptionCost estimates the cost of a transcription call. ok is
// false for models missing from the rate table.
func TranscriptionCost(model string, durationMinutes float64) (float64, bool) {
	rate, ok := TranscriptionRates[model]
	if !ok {
		return 0, false
	}
	return rate * durationMinutes, true
}

// GenerationCost estimates the cost of a generation call from reported
// token usage.
func GenerationCost(model string, totalTokens int) (float64, bool) {
	rate, ok := GenerationRates[model]
	if !ok {
		return 0, false
	}
	return float64(totalTokens) / 1000 * rate, true
}
