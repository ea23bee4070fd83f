package openai

import (
	"context"
	"fmt"
	"strings"
)

// MockProvider is a local fallback used when no API credential flow is
// being exercised (offline development, tests).
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Transcribe(_ context.Context, req TranscribeRequest) (TranscribeResult, error) {
	text := "simulated voice note"
	if len(req.Audio) == 0 {
		text = ""
	}
	return TranscribeResult{Text: text, DurationMinutes: req.DurationMinutes}, nil
}

func (p *MockProvider) Generate(_ context.Context, req GenerateRequest) (GenerateResult, error) {
	kind := "draft"
	if req.Revision {
		kind = "revised draft"
	}
	body := strings.TrimSpace(req.Prompt)
	text := fmt.Sprintf("Subject: Simulated %s\n\n%s\n\nBest regards,\nVoicedraft", kind, body)
	return GenerateResult{Text: text, TotalTokens: len(strings.Fields(body)) + 20}, nil
}
