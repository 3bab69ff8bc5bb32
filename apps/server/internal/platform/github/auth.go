// Package github builds authenticated go-github clients for the inventory
// database. Token auth is used locally and against mock-github; GitHub App
// installation auth is used in deployed environments.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

const defaultAPIURL = "https://api.github.com"

// Credentials selects how the client authenticates. App credentials win when
// AppID is set; otherwise Token is used (and may be empty for mock-github).
type Credentials struct {
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
	BaseURL        string
}

// NewClient returns a client for the given credentials.
func NewClient(creds Credentials) (*gogithub.Client, error) {
	if creds.AppID != 0 {
		return NewAppClient(creds.AppID, creds.InstallationID, creds.PrivateKeyPath, creds.BaseURL)
	}
	return NewTokenClient(creds.Token, creds.BaseURL), nil
}

// NewTokenClient creates a client authenticated with a personal access token.
// Pass baseURL="" for the real GitHub API.
func NewTokenClient(token, baseURL string) *gogithub.Client {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	c := gogithub.NewClient(httpClient)
	applyBaseURL(c, baseURL)
	return c
}

// NewAppClient creates a client authenticated as a GitHub App installation.
func NewAppClient(appID, installationID int64, privateKeyPath, baseURL string) (*gogithub.Client, error) {
	if installationID == 0 || privateKeyPath == "" {
		return nil, fmt.Errorf("github app auth: installation id and private key path are required")
	}

	tr, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, appID, installationID, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("github app auth: %w", err)
	}
	tr.BaseURL = strings.TrimSuffix(firstNonEmpty(baseURL, defaultAPIURL), "/")

	c := gogithub.NewClient(&http.Client{Transport: tr})
	applyBaseURL(c, baseURL)
	return c, nil
}

func applyBaseURL(c *gogithub.Client, baseURL string) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" || baseURL == defaultAPIURL {
		return
	}
	u, err := url.Parse(baseURL + "/")
	if err != nil {
		return
	}
	c.BaseURL = u
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
