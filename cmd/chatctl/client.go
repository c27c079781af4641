package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sweety-ai/sweety-chat/internal/api/respond"
	"github.com/sweety-ai/sweety-chat/internal/session"
)

// client talks to the chat service and persists the session cookie between
// invocations so consecutive commands share one chat session.
type client struct {
	rc         *resty.Client
	cookieFile string
}

type savedCookie struct {
	Value string `json:"value"`
}

func newClient(apiURL, cookieFile string) (*client, error) {
	rc := resty.New().
		SetBaseURL(apiURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)

	c := &client{rc: rc, cookieFile: cookieFile}
	v, err := c.loadCookie()
	if err != nil {
		return nil, err
	}
	if v != "" {
		// resty keeps a cookie jar per client; seed it with the saved session.
		u, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("api url: %w", err)
		}
		rc.GetClient().Jar.SetCookies(u, []*http.Cookie{{Name: session.CookieName, Value: v, Path: "/"}})
	}
	return c, nil
}

func (c *client) post(ctx context.Context, path string, body, out interface{}) error {
	req := c.rc.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	return c.do(req, http.MethodPost, path, out)
}

func (c *client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(c.rc.R().SetContext(ctx), http.MethodGet, path, out)
}

func (c *client) do(req *resty.Request, method, path string, out interface{}) error {
	var apiErr respond.ErrorResponse
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.SetError(&apiErr).Execute(method, path)
	if err != nil {
		return err
	}
	if err := c.saveCookie(resp.Cookies()); err != nil {
		return err
	}
	if resp.IsError() {
		if apiErr.Message != "" {
			return fmt.Errorf("http %d: %s", resp.StatusCode(), apiErr.Message)
		}
		return fmt.Errorf("http %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

func (c *client) loadCookie() (string, error) {
	if c.cookieFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.cookieFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var sc savedCookie
	if err := json.Unmarshal(data, &sc); err != nil {
		return "", fmt.Errorf("cookie file %s: %w", c.cookieFile, err)
	}
	return sc.Value, nil
}

// saveCookie mirrors a Set-Cookie for the session into the cookie file.
func (c *client) saveCookie(cookies []*http.Cookie) error {
	if c.cookieFile == "" {
		return nil
	}
	for _, ck := range cookies {
		if ck.Name != session.CookieName {
			continue
		}
		if ck.MaxAge < 0 || ck.Value == "" {
			if err := os.Remove(c.cookieFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(c.cookieFile), 0o700); err != nil {
			return err
		}
		data, _ := json.Marshal(savedCookie{Value: ck.Value})
		return os.WriteFile(c.cookieFile, data, 0o600)
	}
	return nil
}
