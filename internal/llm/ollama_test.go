package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaClient_ChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		flusher := w.(http.Flusher)
		for _, token := range []string{"Hello", ", ", "world"} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":"%s"},"done":false}`+"\n", token)
			flusher.Flush()
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	client := NewOllamaClient(Config{BaseURL: srv.URL, Model: "test"})

	var tokens []string
	full, err := client.ChatStream(context.Background(), []Message{{Role: "user", Content: "hi"}}, func(token string) {
		tokens = append(tokens, token)
	})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	if full != "Hello, world" {
		t.Errorf("full reply = %q, want 'Hello, world'", full)
	}
	if strings.Join(tokens, "") != full {
		t.Errorf("token concatenation %q does not equal full reply %q", strings.Join(tokens, ""), full)
	}
	if len(tokens) != 3 {
		t.Errorf("tokens = %d, want 3", len(tokens))
	}
}

func TestOllamaClient_ChatStream_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewOllamaClient(Config{BaseURL: srv.URL, Model: "missing"})

	if _, err := client.ChatStream(context.Background(), nil, nil); err == nil {
		t.Fatal("ChatStream() expected error on 404")
	}
}

func TestOllamaClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"full answer"},"done":true}`)
	}))
	defer srv.Close()

	client := NewOllamaClient(Config{BaseURL: srv.URL, Model: "test"})

	reply, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if reply != "full answer" {
		t.Errorf("reply = %q, want 'full answer'", reply)
	}
}
