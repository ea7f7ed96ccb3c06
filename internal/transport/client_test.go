// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efgfdsdfdf/edutrack/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClientWithConfig(&Config{BaseURL: srv.URL, ChatTimeout: 2 * time.Second}, nil)
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestNewClientWithConfig_FillsDefaults(t *testing.T) {
	c := NewClientWithConfig(&Config{BaseURL: "http://example.test/"}, nil)

	assert.Equal(t, "http://example.test", c.BaseURL())
	assert.Equal(t, 60*time.Second, c.config.ChatTimeout)
	assert.Equal(t, 3000, c.config.MaxTokens)
	assert.InDelta(t, 0.7, c.config.Temperature, 1e-9)
	assert.Equal(t, "http://example.test/api/health", c.Endpoint("api/health"))
	assert.Equal(t, "http://example.test/", c.Endpoint("/"))
	assert.Equal(t, "https://other.test/ping", c.Endpoint("https://other.test/ping"))
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"http://localhost:3000", false},
		{"https://api.example.com", false},
		{"ftp://example.com", true},
		{"localhost:3000", true},
		{"http://", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			err := ValidateBaseURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestChat_SendsBody(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"reply":"hello there"}`))
	})

	note := model.NewAttachment(model.KindNote, "")
	note.Title = "Bio"
	photo := model.NewAttachment(model.KindPhoto, "leaf.png")

	reply, err := c.Chat(context.Background(), ChatRequest{
		Messages:     []ChatMessage{{Role: "system", Content: "sys"}, {Role: "user", Content: "hi"}},
		User:         "alice",
		NotesContext: true,
		Attachments:  []model.Attachment{note, photo},
	})
	require.NoError(t, err)
	assert.Equal(t, Reply{Text: "hello there"}, reply)

	assert.Equal(t, "alice", got["user"])
	assert.Equal(t, true, got["notes_context"])
	assert.EqualValues(t, 3000, got["max_tokens"])
	assert.InDelta(t, 0.7, got["temperature"], 1e-9)
	assert.Len(t, got["messages"], 2)

	atts, ok := got["attachments"].([]interface{})
	require.True(t, ok)
	require.Len(t, atts, 1, "notes stay out of the attachment list")
	assert.Equal(t, "photo", atts[0].(map[string]interface{})["type"])
}

func TestChat_ReplyShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"reply", `{"reply":"a"}`, "a"},
		{"message", `{"message":"b"}`, "b"},
		{"choices", `{"choices":[{"message":{"content":"c"}}]}`, "c"},
		{"content", `{"content":"d"}`, "d"},
		{"response", `{"response":"e"}`, "e"},
		{"answer", `{"answer":"f"}`, "f"},
		{"reply wins", `{"answer":"x","reply":"first"}`, "first"},
		{"null reply skipped", `{"reply":null,"message":"m"}`, "m"},
		{"empty choices skipped", `{"choices":[],"answer":"g"}`, "g"},
		{"object encoded", `{"reply":{"text":"hi"}}`, `{"text":"hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})
			reply, err := c.Chat(context.Background(), ChatRequest{User: "bob", Text: "q"})
			require.NoError(t, err)
			assert.False(t, reply.Mock)
			assert.Equal(t, tt.want, reply.Text)
		})
	}
}

func TestChat_MalformedFallsBackToMock(t *testing.T) {
	for _, body := range []string{`not json`, `{"unexpected":1}`, `[1,2]`} {
		t.Run(body, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})
			reply, err := c.Chat(context.Background(), ChatRequest{User: "bob", Text: "Explain osmosis"})
			require.NoError(t, err)
			assert.True(t, reply.Mock)
			assert.Contains(t, reply.Text, `Hello bob! I received: "Explain osmosis"`)
			assert.NotContains(t, reply.Text, OfflineFooter)
		})
	}
}

func TestChat_HTTPErrors(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusUnauthorized, ErrAuthFailed},
		{http.StatusPaymentRequired, ErrInsufficientCredits},
		{http.StatusTooManyRequests, ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, strings.Repeat("x", 300))
			})
			_, err := c.Chat(context.Background(), ChatRequest{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var te *Error
			require.True(t, errors.As(err, &te))
			assert.Equal(t, ErrTypeHTTP, te.Type)
			assert.Equal(t, tt.status, te.Status)
			assert.Contains(t, te.Message, strings.Repeat("x", 100)+")")
			assert.NotContains(t, te.Message, strings.Repeat("x", 101))
		})
	}
}

func TestChat_ServerErrorIsNotASentinel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err := c.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthFailed)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.True(t, IsRetryable(err))
}

func TestChat_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewClientWithConfig(&Config{BaseURL: srv.URL, ChatTimeout: 50 * time.Millisecond}, nil)
	_, err := c.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsRetryable(err))
}

func TestChat_CallerCancel(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	c := NewClientWithConfig(&Config{BaseURL: srv.URL}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	_, err := c.Chat(ctx, ChatRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.False(t, IsRetryable(err))
}

func TestChat_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClientWithConfig(&Config{BaseURL: url, ChatTimeout: time.Second}, nil)
	_, err := c.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
}

// =============================================================================
// PING TESTS
// =============================================================================

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health":
			w.WriteHeader(http.StatusNoContent)
		case "/health":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	})

	assert.NoError(t, c.Ping(context.Background(), "/api/health"))

	err := c.Ping(context.Background(), "/health")
	require.Error(t, err)
	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusServiceUnavailable, te.Status)

	assert.Error(t, c.Ping(context.Background(), "/"))
}

// =============================================================================
// ANALYSIS AND SEARCH TESTS
// =============================================================================

func TestAnalyzeImage_Multipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analyze-image", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, imagePrompt, r.FormValue("prompt"))
		assert.Equal(t, "my diagram", r.FormValue("description"))

		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "PNGDATA", string(data))
		assert.Equal(t, "cell.png", hdr.Filename)

		_, _ = io.WriteString(w, `{"analysis":"A plant cell","fileType":"image/png","fileSize":7}`)
	})

	out, err := c.AnalyzeImage(context.Background(), Upload{
		Name:        "cell.png",
		MimeType:    "image/png",
		Description: "my diagram",
		Body:        strings.NewReader("PNGDATA"),
	})
	require.NoError(t, err)
	assert.Equal(t, "A plant cell", out.Analysis)
	assert.Equal(t, "A plant cell", out.Text, "text defaults to the analysis")
	assert.Equal(t, "image/png", out.MimeType)
	assert.Equal(t, "cell.png", out.FileName)
	assert.EqualValues(t, 7, out.FileSize)
}

func TestAnalyzeDocument_NoDescription(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analyze-document", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, documentPrompt, r.FormValue("prompt"))
		_, hasDesc := r.MultipartForm.Value["description"]
		assert.False(t, hasDesc)
		_, _, err := r.FormFile("document")
		require.NoError(t, err)
		_, _ = io.WriteString(w, `{"analysis":"Summary","text":"full text","mimeType":"text/plain","extractedLength":9}`)
	})

	out, err := c.AnalyzeDocument(context.Background(), Upload{Name: "n.txt", Body: strings.NewReader("full text")})
	require.NoError(t, err)
	assert.Equal(t, "full text", out.Text)
	assert.Equal(t, 9, out.ExtractedLength)
}

func TestAnalyze_ErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"File too large"}`, http.StatusRequestEntityTooLarge)
	})
	_, err := c.AnalyzeDocument(context.Background(), Upload{Name: "big.pdf", Body: strings.NewReader("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "File too large")
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "spaced repetition", req["query"])
		_, _ = io.WriteString(w, `{"results":[{"title":"Study Techniques","snippet":"Use recall","source":"Journal","url":"#a"}]}`)
	})

	results, err := c.Search(context.Background(), "  spaced repetition ")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, SearchResult{Title: "Study Techniques", Snippet: "Use recall", Source: "Journal", URL: "#a"}, results[0])

	none, err := c.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, none)
}
