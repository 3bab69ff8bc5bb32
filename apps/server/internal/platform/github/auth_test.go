package github_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/stockroom/apps/server/internal/platform/github"
)

func TestNewTokenClient_DefaultBaseURL(t *testing.T) {
	c := github.NewTokenClient("", "")
	assert.Equal(t, "https://api.github.com/", c.BaseURL.String())
}

func TestNewTokenClient_CustomBaseURL(t *testing.T) {
	c := github.NewTokenClient("tok", "http://localhost:9090/")
	assert.Equal(t, "http://localhost:9090/", c.BaseURL.String())
}

func TestNewClient_AppWithoutKey_ReturnsError(t *testing.T) {
	_, err := github.NewClient(github.Credentials{AppID: 42})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "github app auth")
}

func TestNewClient_FallsBackToToken(t *testing.T) {
	c, err := github.NewClient(github.Credentials{Token: "tok", BaseURL: "http://fake"})
	require.NoError(t, err)
	assert.Equal(t, "http://fake/", c.BaseURL.String())
}
