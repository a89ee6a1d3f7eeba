package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhibayda/syncora/internal/domain"
)

type seen struct {
	path   string
	key    string
	body   generateRequest
	called int
}

func fakeGemini(t *testing.T, status int, answer string) (*Client, *seen) {
	t.Helper()
	s := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.called++
		s.path = r.URL.Path
		s.key = r.Header.Get("x-goog-api-key")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &s.body)
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
			return
		}
		resp := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": answer}}},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "k-1", nil), s
}

func TestSummarize(t *testing.T) {
	c, s := fakeGemini(t, http.StatusOK, "Short summary")
	got, err := c.Summarize(context.Background(), "Body of the email")
	require.NoError(t, err)
	assert.Equal(t, "Short summary", got)
	assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", s.path)
	assert.Equal(t, "k-1", s.key)
	assert.Contains(t, s.body.Contents[0].Parts[0].Text, "Body of the email")

	c, _ = fakeGemini(t, http.StatusInternalServerError, "")
	_, err = c.Summarize(context.Background(), "x")
	assert.Error(t, err)
}

func TestExtractMeeting(t *testing.T) {
	c, s := fakeGemini(t, http.StatusOK, `{"date":"January 15, 2025","time":"2:00 PM","location":"Room 4","attendees":["Ann"]}`)
	m := c.ExtractMeeting(context.Background(), "Let's meet")
	require.NotNil(t, m)
	assert.Equal(t, "Room 4", m.Location)
	assert.Equal(t, []string{"Ann"}, m.Attendees)
	assert.Equal(t, "/v1beta/models/gemini-2.5-pro:generateContent", s.path)
	require.NotNil(t, s.body.GenerationConfig)
	assert.Equal(t, "application/json", s.body.GenerationConfig.ResponseMIMEType)
	require.NotNil(t, s.body.SystemInstruction)

	c, _ = fakeGemini(t, http.StatusOK, `{}`)
	assert.Nil(t, c.ExtractMeeting(context.Background(), "nothing"))

	c, _ = fakeGemini(t, http.StatusOK, `not json`)
	assert.Nil(t, c.ExtractMeeting(context.Background(), "nothing"))
}

func TestPriority(t *testing.T) {
	c, _ := fakeGemini(t, http.StatusOK, " High\n")
	assert.Equal(t, domain.PriorityHigh, c.Priority(context.Background(), "s", "p"))

	c, _ = fakeGemini(t, http.StatusOK, "it depends")
	assert.Equal(t, domain.PriorityMedium, c.Priority(context.Background(), "Team meeting", ""))

	c, _ = fakeGemini(t, http.StatusBadGateway, "")
	assert.Equal(t, domain.PriorityLow, c.Priority(context.Background(), "URGENT", ""))
}

func TestHeuristicPriority(t *testing.T) {
	cases := map[string]domain.Priority{
		"Need this ASAP":        domain.PriorityHigh,
		"critical outage":       domain.PriorityHigh,
		"Schedule a sync":       domain.PriorityMedium,
		"Weekly newsletter":     domain.PriorityLow,
		"urgent: meeting moved": domain.PriorityHigh,
	}
	for subject, want := range cases {
		assert.Equal(t, want, HeuristicPriority(subject, ""), subject)
	}
}

func TestDetectTasks(t *testing.T) {
	c, s := fakeGemini(t, http.StatusOK, `["Send report","Book room"]`)
	assert.Equal(t, []string{"Send report", "Book room"}, c.DetectTasks(context.Background(), "email"))
	require.NotNil(t, s.body.GenerationConfig)
	assert.NotNil(t, s.body.GenerationConfig.ResponseSchema)

	c, _ = fakeGemini(t, http.StatusInternalServerError, "")
	got := c.DetectTasks(context.Background(), "email")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestChat(t *testing.T) {
	c, s := fakeGemini(t, http.StatusOK, "You have 2 tasks")
	got := c.Chat(context.Background(), "what's up?", &ChatContext{PendingTasks: 2})
	assert.Equal(t, "You have 2 tasks", got)
	prompt := s.body.Contents[0].Parts[0].Text
	assert.True(t, strings.HasPrefix(prompt, "Context: "))
	assert.Contains(t, prompt, `"pendingTasks":2`)

	c, _ = fakeGemini(t, http.StatusOK, "")
	assert.Equal(t, chatEmptyAnswer, c.Chat(context.Background(), "hi", nil))

	c, _ = fakeGemini(t, http.StatusServiceUnavailable, "")
	assert.Equal(t, chatFallback, c.Chat(context.Background(), "hi", nil))
}
