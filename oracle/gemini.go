package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-2.0-flash"
)

const schedulePrompt = `You are an AI assistant that helps students schedule their homework assignments by breaking them into manageable study blocks.

Your primary goal is to create a schedule of sub-tasks that totals the exact estimated time provided. You MUST break down the main task into smaller, manageable sub-tasks and distribute them across the available time slots. Spreading tasks over multiple days is highly encouraged for larger assignments to ensure a balanced workload.

RULES:
1. The total duration of all scheduled sub-tasks MUST equal the estimated time (in minutes).
2. Each sub-task must fit entirely within one of the provided time slots. Do not schedule outside of these slots.
3. The startTime and endTime for each sub-task MUST be a full ISO 8601 string in UTC (e.g., YYYY-MM-DDTHH:mm:ssZ). Convert the local times in the slot list to UTC using the timezone named on its first line.
4. Do not create sub-tasks shorter than 15 minutes. Aim for meaningful work blocks.
5. Prioritize spreading tasks out over several days rather than one long block.

Your response MUST be ONLY a valid JSON object of the form {"schedule": [{"task": "...", "startTime": "...", "endTime": "..."}]}. No other text, markdown, or characters.`

const adjustPrompt = `You are an AI schedule assistant that adjusts a student's time estimates based on their working speed.

Compare the actual time spent on the task with the initial estimate. If the actual time is significantly lower, reduce the estimate; if significantly higher, increase it. Keep the adjusted schedule feasible without overloading the student.

Your response MUST be ONLY a valid JSON object of the form {"adjustedSchedule": "<schedule JSON>", "newEstimatedTime": <minutes>}.`

// GeminiConfig holds configuration for the Gemini oracle.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiOracle implements Oracle using the Google Generative Language
// API's generateContent endpoint.
type GeminiOracle struct {
	config GeminiConfig
}

// NewGeminiOracle creates a Gemini oracle with the given config.
func NewGeminiOracle(cfg GeminiConfig) *GeminiOracle {
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &GeminiOracle{config: cfg}
}

func (o *GeminiOracle) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Schedule sends the allocation request and parses the returned schedule.
// Transport and API failures are plain errors; a response that is not the
// documented schedule shape is a *ValidationError.
func (o *GeminiOracle) Schedule(ctx context.Context, req Request) ([]Item, error) {
	user := fmt.Sprintf("Homework Description:\n%s\n\nTotal Estimated Time to Schedule: %d minutes.\n\nAvailable Time Slots Over the Next 30 Days (current time has been factored in):\n%s",
		req.TaskDescription, req.TotalMinutes, req.AvailabilityText)

	text, err := o.generate(ctx, schedulePrompt, user)
	if err != nil {
		return nil, err
	}

	var out struct {
		Schedule []Item `json:"schedule"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &out); err != nil {
		return nil, &ValidationError{Violations: []string{
			fmt.Sprintf("response is not valid schedule JSON: %v", err),
		}}
	}
	return out.Schedule, nil
}

// AdjustEstimate asks the oracle for a recalibrated time estimate.
func (o *GeminiOracle) AdjustEstimate(ctx context.Context, req AdjustmentRequest) (AdjustmentResult, error) {
	user := fmt.Sprintf("Task ID: %s\nEstimated Time: %d minutes\nActual Time: %d minutes\nCurrent Schedule: %s",
		req.TaskID, req.EstimatedMinutes, req.ActualMinutes, req.ScheduleJSON)

	text, err := o.generate(ctx, adjustPrompt, user)
	if err != nil {
		return AdjustmentResult{}, err
	}

	var out AdjustmentResult
	if err := json.Unmarshal([]byte(stripFences(text)), &out); err != nil {
		return AdjustmentResult{}, fmt.Errorf("gemini: unmarshal adjustment: %w", err)
	}
	if out.NewEstimatedMinutes <= 0 {
		return AdjustmentResult{}, fmt.Errorf("gemini: adjustment returned non-positive estimate %d", out.NewEstimatedMinutes)
	}
	return out, nil
}

func (o *GeminiOracle) generate(ctx context.Context, system, user string) (string, error) {
	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: system}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: user}}},
		},
		GenerationConfig: geminiGenerationConfig{ResponseMIMEType: "application/json"},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", o.config.BaseURL, o.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", o.config.APIKey)

	resp, err := o.config.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini: API error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("gemini: unmarshal response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("gemini: API error %d: %s", apiResp.Error.Code, apiResp.Error.Message)
	}
	if len(apiResp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: response has no candidates")
	}

	var parts []string
	for _, p := range apiResp.Candidates[0].Content.Parts {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, ""), nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
