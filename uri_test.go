package wsclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWSURIDefaults(t *testing.T) {
	u, err := parseWSURI("ws://example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", u.host)
	assert.Equal(t, "example.com:80", u.hostport)
	assert.False(t, u.hasPort)
	assert.Equal(t, "/", u.requestURI)
	assert.Equal(t, "example.com", u.hostHeader())
}

func TestParseWSURIExplicitPortAndPath(t *testing.T) {
	u, err := parseWSURI("ws://example.com:9001/chat?room=42")
	require.NoError(t, err)
	assert.Equal(t, "example.com", u.host)
	assert.Equal(t, "example.com:9001", u.hostport)
	assert.True(t, u.hasPort)
	assert.Equal(t, "/chat?room=42", u.requestURI)
	assert.Equal(t, "example.com:9001", u.hostHeader())
}

func TestParseWSURIRejectsWSS(t *testing.T) {
	_, err := parseWSURI("wss://example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestParseWSURIRejectsMissingHost(t *testing.T) {
	_, err := parseWSURI("ws:///path")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestParseWSURIRejectsGarbage(t *testing.T) {
	_, err := parseWSURI("://not a uri")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestSplitHostPortBareIPv6(t *testing.T) {
	host, port, hasPort := splitHostPort("[::1]")
	assert.Equal(t, "::1", host)
	assert.Equal(t, "80", port)
	assert.False(t, hasPort)
}

func TestSplitHostPortWithPort(t *testing.T) {
	host, port, hasPort := splitHostPort("example.com:8080")
	assert.Equal(t, "example.com", host)
	assert.Equal(t, "8080", port)
	assert.True(t, hasPort)
}
