package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"gospeldiary/internal/config"
)

// geminiServer answers generateContent calls with the given finish reason.
func geminiServer(t *testing.T, status int, body string, calls *int32, lastRequest *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(calls, 1)
		if lastRequest != nil {
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			*lastRequest = req
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func geminiResponse(text, finishReason string) string {
	return `{"candidates":[{"content":{"role":"model","parts":[{"text":"` + text + `"}]},"finishReason":"` + finishReason + `"}],` +
		`"usageMetadata":{"promptTokenCount":42,"candidatesTokenCount":7,"totalTokenCount":49}}`
}

func TestGeminiBackend_Generate(t *testing.T) {
	tests := []struct {
		name         string
		finishReason string
		expected     FinishReason
	}{
		{"stop", "STOP", FinishStop},
		{"max tokens", "MAX_TOKENS", FinishLength},
		{"safety", "SAFETY", FinishBlocked},
		{"recitation", "RECITATION", FinishBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			var lastRequest map[string]any
			srv := geminiServer(t, http.StatusOK, geminiResponse("Peace be with you.", tt.finishReason), &calls, &lastRequest)

			backend, err := NewGeminiBackend(context.Background(), "test-key", "gemini-test", srv.URL+"/")
			if err != nil {
				t.Fatalf("NewGeminiBackend failed: %v", err)
			}

			resp, err := backend.Generate(context.Background(), Request{Prompt: "Reflect", MaxOutputTokens: 256, Temperature: 0.7})
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}

			if resp.FinishReason != tt.expected {
				t.Errorf("Expected finish reason %s, got %s", tt.expected, resp.FinishReason)
			}
			if resp.Text != "Peace be with you." {
				t.Errorf("Unexpected text %q", resp.Text)
			}
			if resp.PromptTokens != 42 || resp.OutputTokens != 7 {
				t.Errorf("Unexpected usage: prompt=%d output=%d", resp.PromptTokens, resp.OutputTokens)
			}
			if resp.Model != "gemini-test" {
				t.Errorf("Expected model gemini-test, got %s", resp.Model)
			}
			if calls != 1 {
				t.Errorf("Expected 1 call, got %d", calls)
			}

			genConfig, ok := lastRequest["generationConfig"].(map[string]any)
			if !ok {
				t.Fatalf("Request carried no generationConfig: %v", lastRequest)
			}
			if got, _ := genConfig["maxOutputTokens"].(float64); got != 256 {
				t.Errorf("Expected maxOutputTokens 256, got %v", genConfig["maxOutputTokens"])
			}
		})
	}
}

func TestGeminiBackend_APIError(t *testing.T) {
	var calls int32
	srv := geminiServer(t, http.StatusUnauthorized,
		`{"error":{"code":401,"message":"API key not valid","status":"UNAUTHENTICATED"}}`, &calls, nil)

	backend, err := NewGeminiBackend(context.Background(), "bad-key", "", srv.URL+"/")
	if err != nil {
		t.Fatalf("NewGeminiBackend failed: %v", err)
	}

	_, err = backend.Generate(context.Background(), Request{Prompt: "Reflect", MaxOutputTokens: 128})
	if err == nil {
		t.Fatal("Expected error for unauthorized response")
	}
	if calls != 1 {
		t.Errorf("Expected exactly 1 call, got %d", calls)
	}
}

func TestGeminiBackend_EmptyPrompt(t *testing.T) {
	var calls int32
	srv := geminiServer(t, http.StatusOK, geminiResponse("x", "STOP"), &calls, nil)

	backend, err := NewGeminiBackend(context.Background(), "test-key", "", srv.URL+"/")
	if err != nil {
		t.Fatalf("NewGeminiBackend failed: %v", err)
	}
	if _, err := backend.Generate(context.Background(), Request{}); err == nil {
		t.Error("Expected error for empty prompt")
	}
	if calls != 0 {
		t.Errorf("Expected no calls, got %d", calls)
	}
}

func TestNewGeminiBackend_NoAPIKey(t *testing.T) {
	_, err := NewGeminiBackend(context.Background(), "", "", "")
	if err == nil {
		t.Fatal("Expected error when no API key is available")
	}
	if !strings.Contains(err.Error(), "gemini API key is required") {
		t.Errorf("Expected API key error, got: %v", err)
	}
}

func TestGeminiBackend_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[
			{"name":"models/gemini-2.5-flash","displayName":"Gemini 2.5 Flash","inputTokenLimit":1048576,"outputTokenLimit":65536},
			{"name":"models/gemini-2.0-flash","displayName":"Gemini 2.0 Flash","inputTokenLimit":1048576,"outputTokenLimit":8192}
		]}`))
	}))
	defer srv.Close()

	backend, err := NewGeminiBackend(context.Background(), "test-key", "", srv.URL+"/")
	if err != nil {
		t.Fatalf("NewGeminiBackend failed: %v", err)
	}

	models, err := backend.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(models))
	}
	if models[0].Name != "gemini-2.5-flash" {
		t.Errorf("Expected prefix-free name, got %q", models[0].Name)
	}
	if models[1].OutputTokenLimit != 8192 {
		t.Errorf("Expected output limit 8192, got %d", models[1].OutputTokenLimit)
	}
}

func openAIServer(t *testing.T, status int, body string, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openAIResponse(content, finishReason string) string {
	return `{"id":"chatcmpl-1","object":"chat.completion","created":1700000000,"model":"gpt-4o-mini",` +
		`"choices":[{"index":0,"message":{"role":"assistant","content":"` + content + `"},"finish_reason":"` + finishReason + `"}],` +
		`"usage":{"prompt_tokens":30,"completion_tokens":12,"total_tokens":42}}`
}

func TestOpenAIBackend_Generate(t *testing.T) {
	tests := []struct {
		name         string
		finishReason string
		expected     FinishReason
	}{
		{"stop", "stop", FinishStop},
		{"length", "length", FinishLength},
		{"content filter", "content_filter", FinishBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := openAIServer(t, http.StatusOK, openAIResponse("Grace and peace.", tt.finishReason), &calls)

			backend, err := NewOpenAIBackend("sk-test", "", srv.URL+"/v1/")
			if err != nil {
				t.Fatalf("NewOpenAIBackend failed: %v", err)
			}

			resp, err := backend.Generate(context.Background(), Request{Prompt: "Reflect", MaxOutputTokens: 512, Temperature: 0.7})
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if resp.FinishReason != tt.expected {
				t.Errorf("Expected finish reason %s, got %s", tt.expected, resp.FinishReason)
			}
			if resp.Text != "Grace and peace." {
				t.Errorf("Unexpected text %q", resp.Text)
			}
			if resp.PromptTokens != 30 || resp.OutputTokens != 12 {
				t.Errorf("Unexpected usage: prompt=%d output=%d", resp.PromptTokens, resp.OutputTokens)
			}
			if resp.Model != DefaultOpenAIModel {
				t.Errorf("Expected default model, got %s", resp.Model)
			}
		})
	}
}

func TestOpenAIBackend_NoSDKRetries(t *testing.T) {
	var calls int32
	srv := openAIServer(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, &calls)

	backend, err := NewOpenAIBackend("sk-test", "gpt-4o-mini", srv.URL+"/v1/")
	if err != nil {
		t.Fatalf("NewOpenAIBackend failed: %v", err)
	}

	if _, err := backend.Generate(context.Background(), Request{Prompt: "Reflect"}); err == nil {
		t.Fatal("Expected error for server failure")
	}
	if calls != 1 {
		t.Errorf("Expected exactly 1 call, got %d", calls)
	}
}

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.AI
		wantName string
		wantErr  bool
	}{
		{"gemini", config.AI{Provider: "gemini", Gemini: config.Gemini{APIKey: "k"}}, "gemini", false},
		{"default provider", config.AI{Gemini: config.Gemini{APIKey: "k"}}, "gemini", false},
		{"openai", config.AI{Provider: "OpenAI", OpenAI: config.OpenAI{APIKey: "k"}}, "openai", false},
		{"gemini without key", config.AI{Provider: "gemini"}, "", true},
		{"unknown", config.AI{Provider: "llama"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := NewBackend(context.Background(), tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend failed: %v", err)
			}
			if backend.Name() != tt.wantName {
				t.Errorf("Expected backend %s, got %s", tt.wantName, backend.Name())
			}
		})
	}
}

func TestRoughTokens(t *testing.T) {
	tests := map[string]int{
		"":          0,
		"abc":       1,
		"abcd":      1,
		"abcdefgh":  2,
		"abcdefghi": 3,
	}
	for text, want := range tests {
		if got := RoughTokens(text); got != want {
			t.Errorf("RoughTokens(%q) = %d, want %d", text, got, want)
		}
	}
}
