package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/awacs/annotate/internal/config"
	"github.com/awacs/annotate/internal/model"
)

// GeminiClient speaks to the Gemini vision model through its
// OpenAI-compatible chat completions surface.
type GeminiClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	maxImages  int
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

const classifySystemPrompt = `You classify commercial vehicle listings into standardized categories.
Given breadcrumb hints and listing photos, answer with a JSON array of up
to 3 objects ordered by confidence: [{"category": "...", "confidence": 0-100}].
Answer with the JSON array only.`

const verifySystemPrompt = `You verify dual-rear-wheel (dually) classifications.
Inspect the photos for two rear wheels per side, flared rear fenders or a
dual rim pattern. Answer with one JSON object:
{"is_dually": true|false, "confidence": 0-100}. Answer with the JSON object only.`

// NewGeminiClient creates a classifier client. Keys are supplied per
// call by the pool, not held here.
func NewGeminiClient(cfg *config.ClassifierConfig) *GeminiClient {
	return &GeminiClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		maxImages: cfg.MaxImages,
	}
}

// Classify issues one classification call for a listing.
func (c *GeminiClient) Classify(ctx context.Context, apiKey string, req Request) (*Result, error) {
	user := fmt.Sprintf("Ad %s. Breadcrumb hints: %s.", req.AdID, strings.Join(req.Breadcrumbs, ", "))
	resp, err := c.complete(ctx, apiKey, classifySystemPrompt, user, req.ImageURLs)
	if err != nil {
		return nil, err
	}

	anns, err := parseAnnotations(resp.content)
	if err != nil {
		return nil, fmt.Errorf("parse classification for ad %s: %w", req.AdID, err)
	}

	return &Result{
		Annotations:  anns,
		InputTokens:  resp.inputTokens,
		OutputTokens: resp.outputTokens,
		CostCents:    CostCents(resp.inputTokens, resp.outputTokens, c.model),
	}, nil
}

// VerifyDually issues the second, independent call that confirms or
// refutes a dually classification.
func (c *GeminiClient) VerifyDually(ctx context.Context, apiKey string, req Request) (*Verification, error) {
	user := fmt.Sprintf("Ad %s. Does this vehicle have dual rear wheels?", req.AdID)
	// The re-check looks at the primary photo only.
	images := req.ImageURLs
	if len(images) > 1 {
		images = images[:1]
	}
	resp, err := c.complete(ctx, apiKey, verifySystemPrompt, user, images)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		IsDually   bool    `json:"is_dually"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripFences(resp.content)), &parsed); err != nil {
		return nil, fmt.Errorf("parse verification for ad %s: %w", req.AdID, err)
	}

	return &Verification{
		IsDually:     parsed.IsDually,
		Confidence:   parsed.Confidence,
		InputTokens:  resp.inputTokens,
		OutputTokens: resp.outputTokens,
		CostCents:    CostCents(resp.inputTokens, resp.outputTokens, c.model),
	}, nil
}

type completion struct {
	content      string
	inputTokens  int
	outputTokens int
}

func (c *GeminiClient) complete(ctx context.Context, apiKey, system, user string, imageURLs []string) (*completion, error) {
	userParts := []contentPart{{Type: "text", Text: user}}
	for i, u := range imageURLs {
		if c.maxImages > 0 && i >= c.maxImages {
			break
		}
		userParts = append(userParts, contentPart{Type: "image_url", ImageURL: &imageRef{URL: u}})
	}

	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: []contentPart{{Type: "text", Text: system}}},
			{Role: "user", Content: userParts},
		},
		Temperature: 0,
		MaxTokens:   256,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}

	return &completion{
		content:      chatResp.Choices[0].Message.Content,
		inputTokens:  chatResp.Usage.PromptTokens,
		outputTokens: chatResp.Usage.CompletionTokens,
	}, nil
}

// parseAnnotations reads the model's JSON answer, tolerating code
// fences, and returns at most 3 annotations ordered by confidence.
func parseAnnotations(content string) ([]model.Annotation, error) {
	var anns []model.Annotation
	if err := json.Unmarshal([]byte(stripFences(content)), &anns); err != nil {
		return nil, err
	}
	sort.SliceStable(anns, func(i, j int) bool {
		return anns[i].Confidence > anns[j].Confidence
	})
	if len(anns) > 3 {
		anns = anns[:3]
	}
	return anns, nil
}

// stripFences removes a surrounding markdown code fence if the model
// wrapped its JSON in one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
