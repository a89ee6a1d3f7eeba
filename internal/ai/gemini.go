// Package ai talks to the Gemini generateContent REST endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tazhibayda/syncora/internal/domain"
)

const (
	ModelFlash = "gemini-2.5-flash"
	ModelPro   = "gemini-2.5-pro"

	maxResponseSize = 4 << 20

	chatFallback    = "I'm experiencing technical difficulties. Please try again."
	chatEmptyAnswer = "I'm sorry, I couldn't process that request."
)

var ErrEmptyResponse = errors.New("ai: empty response")

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Log     *zap.Logger
}

func NewClient(baseURL, apiKey string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
		Log:     log,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
	ResponseSchema   any    `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type call struct {
	model  string
	system string
	json   bool
	schema any
}

func (c *Client) generate(ctx context.Context, cl call, prompt string) (string, error) {
	body := generateRequest{Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}}}
	if cl.system != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: cl.system}}}
	}
	if cl.json {
		body.GenerationConfig = &generationConfig{ResponseMIMEType: "application/json", ResponseSchema: cl.schema}
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.BaseURL, cl.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("ai read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("ai decode: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	text := out.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Summarize returns a short summary with key points. Errors are returned to
// the caller.
func (c *Client) Summarize(ctx context.Context, email string) (string, error) {
	prompt := "Analyze this email and provide a concise summary with key points. " +
		"Also extract any meeting details (date, time, location, attendees) if present:\n\n" + email
	return c.generate(ctx, call{model: ModelFlash}, prompt)
}

const meetingSystem = `You are an expert at extracting meeting information from emails.
Extract meeting details and return JSON with these fields:
- date (string, e.g., "January 15, 2025")
- time (string, e.g., "2:00 PM - 3:00 PM")
- location (string, physical location or meeting link)
- attendees (array of strings, participant names)
Return null for any field not found. If no meeting is detected, return an empty object.`

// ExtractMeeting returns nil when no meeting is found or the call fails.
func (c *Client) ExtractMeeting(ctx context.Context, email string) *domain.MeetingDetails {
	raw, err := c.generate(ctx, call{model: ModelPro, system: meetingSystem, json: true}, email)
	if err != nil {
		c.Log.Warn("meeting extraction failed", zap.Error(err))
		return nil
	}
	var m domain.MeetingDetails
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		c.Log.Warn("meeting extraction: bad json", zap.Error(err))
		return nil
	}
	if m.Empty() {
		return nil
	}
	return &m
}

const prioritySystem = `You are an email priority analyzer. Analyze the email and classify its priority as "high", "medium", or "low" based on urgency, importance, and action requirements.

High priority: Urgent deadlines, critical issues, action required, executive requests
Medium priority: Meetings, scheduled events, routine follow-ups, information requests
Low priority: Newsletters, notifications, non-urgent updates

Return only one word: "high", "medium", or "low"`

// Priority classifies an email. An unexpected answer falls back to keyword
// matching; a failed call yields low.
func (c *Client) Priority(ctx context.Context, subject, snippet string) domain.Priority {
	raw, err := c.generate(ctx, call{model: ModelFlash, system: prioritySystem},
		"Subject: "+subject+"\nPreview: "+snippet)
	if err != nil {
		c.Log.Warn("priority analysis failed", zap.Error(err))
		return domain.PriorityLow
	}
	if p := domain.Priority(strings.ToLower(strings.TrimSpace(raw))); p.Valid() {
		return p
	}
	return HeuristicPriority(subject, snippet)
}

// HeuristicPriority is the keyword fallback used when the model answers
// something other than a priority.
func HeuristicPriority(subject, snippet string) domain.Priority {
	text := strings.ToLower(subject + " " + snippet)
	switch {
	case strings.Contains(text, "urgent"), strings.Contains(text, "asap"), strings.Contains(text, "critical"):
		return domain.PriorityHigh
	case strings.Contains(text, "meeting"), strings.Contains(text, "schedule"):
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

const tasksSystem = `You are a task detection expert. Analyze this email and extract action items or tasks.
Return a JSON array of task strings. Each task should be clear and actionable.
If no tasks are found, return an empty array.`

var taskSchema = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

// DetectTasks returns action items found in the email, empty on any failure.
func (c *Client) DetectTasks(ctx context.Context, email string) []string {
	raw, err := c.generate(ctx, call{model: ModelFlash, system: tasksSystem, json: true, schema: taskSchema}, email)
	if err != nil {
		c.Log.Warn("task detection failed", zap.Error(err))
		return []string{}
	}
	var tasks []string
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		c.Log.Warn("task detection: bad json", zap.Error(err))
		return []string{}
	}
	return tasks
}

// ChatContext is the dashboard snapshot handed to the assistant.
type ChatContext struct {
	EmailCount         int `json:"emailCount"`
	HighPriorityEmails int `json:"highPriorityEmails"`
	UpcomingMeetings   int `json:"upcomingMeetings"`
	PendingTasks       int `json:"pendingTasks"`
}

// Chat never fails; errors turn into an apology.
func (c *Client) Chat(ctx context.Context, message string, snap *ChatContext) string {
	prompt := message
	if snap != nil {
		b, _ := json.Marshal(snap)
		prompt = "Context: " + string(b) + "\n\nUser question: " + message +
			"\n\nProvide a helpful response based on the context."
	}
	text, err := c.generate(ctx, call{model: ModelFlash}, prompt)
	switch {
	case errors.Is(err, ErrEmptyResponse):
		return chatEmptyAnswer
	case err != nil:
		c.Log.Warn("ai chat failed", zap.Error(err))
		return chatFallback
	}
	return text
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Heuristic classifies with keywords only. It stands in for the client when no
// API key is configured.
type Heuristic struct{}

func (Heuristic) Priority(_ context.Context, subject, snippet string) domain.Priority {
	return HeuristicPriority(subject, snippet)
}
