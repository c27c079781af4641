//go:build e2e
// +build e2e

package e2e

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

type history struct {
	Conversations []struct {
		UserMessage string `json:"user_message"`
		AIResponse  string `json:"ai_response"`
	} `json:"conversations"`
	Degraded bool `json:"degraded"`
}

func baseURL(t *testing.T) string {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}
	api := env("SWEETY_API", "http://localhost:5000")
	if err := ping(api + "/api/health"); err != nil {
		t.Skipf("service %s unreachable: %v", api, err)
	}
	waitForHealthy(t, api, 10*time.Second)
	return api
}

// Signup, login with the email, and check the session reports the user.
func TestDevEnv_SignupLoginStatus(t *testing.T) {
	api := baseURL(t)
	c := newBrowser(t)
	name := fmt.Sprintf("e2e%d", time.Now().UnixNano())

	resp := postJSON(t, c, api+"/api/signup", map[string]string{
		"username": name, "email": name + "@example.com", "password": "secret1",
	})
	var created map[string]interface{}
	mustJSON(t, resp, &created)

	resp = postJSON(t, c, api+"/api/signup", map[string]string{
		"username": name, "email": "other-" + name + "@example.com", "password": "secret1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d", resp.StatusCode)
	}

	var login map[string]interface{}
	mustJSON(t, postJSON(t, c, api+"/api/login", map[string]string{
		"username": name + "@example.com", "password": "secret1",
	}), &login)

	r, err := c.Get(api + "/api/user-status")
	if err != nil {
		t.Fatalf("user-status: %v", err)
	}
	var status struct {
		LoggedIn bool   `json:"logged_in"`
		Username string `json:"username"`
	}
	mustJSON(t, r, &status)
	if !status.LoggedIn || status.Username != name {
		t.Fatalf("unexpected status %+v", status)
	}
}

// Two turns on one session, then concurrent turns, then a fresh session.
func TestDevEnv_ChatTranscript(t *testing.T) {
	api := baseURL(t)
	c := newBrowser(t)

	for _, msg := range []string{"hello", "bye"} {
		var reply struct {
			Response string `json:"response"`
		}
		mustJSON(t, postJSON(t, c, api+"/chat", map[string]string{"message": msg}), &reply)
		if reply.Response == "" {
			t.Fatalf("empty reply for %q", msg)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := strings.NewReader(fmt.Sprintf(`{"message":"dup %d"}`, i))
			resp, err := c.Post(api+"/chat", "application/json", body)
			if err != nil {
				t.Errorf("concurrent chat: %v", err)
				return
			}
			resp.Body.Close()
		}(i)
	}
	wg.Wait()

	r, err := c.Get(api + "/history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var h history
	mustJSON(t, r, &h)
	if len(h.Conversations) != 4 {
		t.Fatalf("expected 4 conversations, got %d", len(h.Conversations))
	}
	if h.Conversations[0].UserMessage != "hello" || h.Conversations[1].UserMessage != "bye" {
		t.Fatalf("order not preserved: %+v", h.Conversations)
	}

	var ns map[string]interface{}
	mustJSON(t, postJSON(t, c, api+"/new-session", nil), &ns)
	r, err = c.Get(api + "/history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	h = history{}
	mustJSON(t, r, &h)
	if len(h.Conversations) != 0 {
		t.Fatalf("expected empty history after new-session, got %d", len(h.Conversations))
	}
}
