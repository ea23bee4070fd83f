package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const (
	draftSystemPrompt = "You are an assistant that rewrites user notes into a clean, professional email. " +
		"Use headings, paragraphs, bullet points and a sign-off when appropriate. Detect if a call-to-action is needed."
	reviseSystemPrompt = "You are an assistant that rewrites user notes into a clean, professional email. " +
		"Apply the tweak instructions to improve the previous email. " +
		"Use headings, paragraphs, bullet points and a sign-off when appropriate."

	// DefaultMaxTokens bounds the generated email length.
	DefaultMaxTokens = 800
)

type TranscribeRequest struct {
	Audio    []byte
	Filename string
	Model    string
	Secret   string
	// DurationMinutes is measured client-side from the captured audio; the
	// endpoint does not report it.
	DurationMinutes float64
}

type TranscribeResult struct {
	Text            string
	DurationMinutes float64
}

type GenerateRequest struct {
	Prompt    string
	Model     string
	Secret    string
	MaxTokens int
	// Revision selects the tweak-flavored system instruction.
	Revision bool
}

type GenerateResult struct {
	Text        string
	TotalTokens int
}

// Transcriber converts a captured audio payload into text.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest) (TranscribeResult, error)
}

// Generator produces a formatted email from a text prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// Client talks to an OpenAI-style API over HTTP. Calls carry no timeout:
// a hung remote call blocks that workflow path until it returns.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = "https://api.openai.com"
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{},
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (c *Client) Transcribe(ctx context.Context, req TranscribeRequest) (TranscribeResult, error) {
	filename := req.Filename
	if filename == "" {
		filename = "voice.webm"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return TranscribeResult{}, err
	}
	if _, err := fw.Write(req.Audio); err != nil {
		return TranscribeResult{}, err
	}
	if err := mw.WriteField("model", req.Model); err != nil {
		return TranscribeResult{}, err
	}
	if err := mw.Close(); err != nil {
		return TranscribeResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return TranscribeResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.Secret)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return TranscribeResult{}, &NetworkError{Op: "transcription", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return TranscribeResult{}, &NetworkError{Op: "transcription", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return TranscribeResult{}, remoteErrorFromBody(resp.StatusCode, raw)
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return TranscribeResult{}, remoteErrorFromBody(resp.StatusCode, raw)
	}
	return TranscribeResult{Text: parsed.Text, DurationMinutes: req.DurationMinutes}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *Client) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	system := draftSystemPrompt
	if req.Revision {
		system = reviseSystemPrompt
	}

	payload, err := json.Marshal(chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return GenerateResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return GenerateResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.Secret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return GenerateResult{}, &NetworkError{Op: "generation", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return GenerateResult{}, &NetworkError{Op: "generation", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return GenerateResult{}, remoteErrorFromBody(resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return GenerateResult{}, remoteErrorFromBody(resp.StatusCode, raw)
	}
	text := ""
	if len(parsed.Choices) > 0 {
		text = parsed.Choices[0].Message.Content
	}
	return GenerateResult{Text: text, TotalTokens: parsed.Usage.TotalTokens}, nil
}
