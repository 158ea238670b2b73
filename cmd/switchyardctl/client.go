package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// client is a thin wrapper over the daemon API.
type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient() (*client, error) {
	token := os.Getenv("API_BEARER_TOKEN")
	if token == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "API token: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("reading token: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}
	return &client{
		base:  strings.TrimRight(serverURL, "/"),
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// apiError is the daemon's {"detail": ...} envelope.
type apiError struct {
	Detail string `json:"detail"`
}

func (c *client) do(method, path string, out any) error {
	req, err := http.NewRequest(method, c.base+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var e apiError
		if json.Unmarshal(body, &e) == nil && e.Detail != "" {
			return fmt.Errorf("%s (%d)", e.Detail, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}

	if jsonOut {
		fmt.Println(string(body))
		return nil
	}
	if out != nil {
		return json.Unmarshal(body, out)
	}
	return nil
}
