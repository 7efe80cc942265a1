package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/campaign-agency/internal/config"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func testCfg() config.LLM {
	return config.LLM{
		BaseURL: "http://upstream/v1",
		Model:   "test-model",
		APIKey:  "sk-test",
		Timeout: config.Duration(2 * time.Second),
	}
}

func TestCompleteJSON(t *testing.T) {
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Path != "/v1/chat/completions" {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			if got := req.Header.Get("Authorization"); got != "Bearer sk-test" {
				t.Fatalf("authorization=%q", got)
			}

			var in chatCompletionRequest
			if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
				t.Fatalf("decode req: %v", err)
			}
			if in.Model != "test-model" {
				t.Fatalf("model=%q", in.Model)
			}
			if in.ResponseFormat["type"] != "json_object" {
				t.Fatalf("response_format=%v", in.ResponseFormat)
			}
			if len(in.Messages) != 2 {
				t.Fatalf("messages=%d", len(in.Messages))
			}

			out := chatCompletionResponse{}
			out.Choices = append(out.Choices, struct {
				Message struct {
					Content string `json:"content,omitempty"`
				} `json:"message,omitempty"`
			}{})
			out.Choices[0].Message.Content = "```json\n{\"ok\":true}\n```"
			b, _ := json.Marshal(out)
			return jsonResponse(http.StatusOK, string(b)), nil
		}),
	}

	c, err := NewWithHTTPClient(testCfg(), client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}

	out, err := c.CompleteJSON(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "user"},
		{Role: "user", Content: "  "}, // dropped
	})
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("out=%q", out)
	}
}

func TestCompleteJSON_EmptyCompletion(t *testing.T) {
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`), nil
		}),
	}
	c, err := NewWithHTTPClient(testCfg(), client)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.CompleteJSON(context.Background(), []Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatal("expected empty completion error")
	}
}

func TestCompleteJSON_HTTPError(t *testing.T) {
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusUnauthorized, `{"error":"bad key"}`), nil
		}),
	}
	c, err := NewWithHTTPClient(testCfg(), client)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.CompleteJSON(context.Background(), []Message{{Role: "user", Content: "hi"}})
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err=%v", err)
	}
}

func TestTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", &HTTPError{StatusCode: 429}, true},
		{"server error", &HTTPError{StatusCode: 503}, true},
		{"bad request", &HTTPError{StatusCode: 400}, false},
		{"auth", &HTTPError{StatusCode: 401}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Transient(tc.err); got != tc.want {
				t.Fatalf("Transient(%v) = %v", tc.err, got)
			}
		})
	}
}

func TestSanitizeJSONText(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := sanitizeJSONText(tc.in); got != tc.want {
			t.Fatalf("sanitizeJSONText(%q) = %q", tc.in, got)
		}
	}
}
