package wsclient

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveHandshake plays the server side of the opening handshake on one end
// of a net.Pipe, replying with a valid 101 response (plus any extraLines
// appended before the blank line) and writing trailer after the blank line.
func serveHandshake(t *testing.T, server net.Conn, extraLines []string, trailer []byte) {
	t.Helper()
	go func() {
		br := bufio.NewReader(server)
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		require.Contains(t, line, "GET")

		var key string
		for {
			line, err := br.ReadString('\n')
			require.NoError(t, err)
			trimmed := strings.TrimRight(line, "\r\n")
			if trimmed == "" {
				break
			}
			if k, v, ok := splitHeaderLine(trimmed); ok && strings.EqualFold(k, "sec-websocket-key") {
				key = v
			}
		}

		// The response and trailer go out in one Write: net.Pipe hands each
		// Write to the reader separately, so a trailer written on its own
		// would never be in the client's buffer when the headers end.
		var resp strings.Builder
		fmt.Fprintf(&resp, "HTTP/1.1 101 Switching Protocols\r\n")
		fmt.Fprintf(&resp, "Upgrade: websocket\r\n")
		fmt.Fprintf(&resp, "Connection: Upgrade\r\n")
		fmt.Fprintf(&resp, "Sec-WebSocket-Accept: %s\r\n", acceptHash([]byte(key)))
		for _, l := range extraLines {
			fmt.Fprintf(&resp, "%s\r\n", l)
		}
		fmt.Fprintf(&resp, "\r\n")
		resp.Write(trailer)
		server.Write([]byte(resp.String()))
	}()
}

func TestClientHandshakeSuccess(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	serveHandshake(t, server, nil, nil)

	uri, err := parseWSURI("ws://example.com/chat")
	require.NoError(t, err)
	cfg := Config{HandshakeTimeout: time.Second}.withDefaults()

	leftover, err := clientHandshake(client, uri, cfg)
	require.NoError(t, err)
	assert.Empty(t, leftover)
}

func TestClientHandshakeCapturesLeftoverBytes(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	frameBytes := []byte{0x81, 0x02, 'h', 'i'}
	serveHandshake(t, server, nil, frameBytes)

	uri, err := parseWSURI("ws://example.com/")
	require.NoError(t, err)
	cfg := Config{HandshakeTimeout: time.Second}.withDefaults()

	leftover, err := clientHandshake(client, uri, cfg)
	require.NoError(t, err)
	assert.Equal(t, frameBytes, leftover)
}

func TestClientHandshakeRejectsNon101(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		br := bufio.NewReader(server)
		for {
			line, err := br.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		fmt.Fprintf(server, "HTTP/1.1 404 Not Found\r\n\r\n")
	}()

	uri, err := parseWSURI("ws://example.com/")
	require.NoError(t, err)
	cfg := Config{HandshakeTimeout: time.Second}.withDefaults()

	_, err = clientHandshake(client, uri, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandshakeRejected)
}

func TestClientHandshakeRejectsBadAccept(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		br := bufio.NewReader(server)
		for {
			line, err := br.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		fmt.Fprintf(server, "HTTP/1.1 101 Switching Protocols\r\n")
		fmt.Fprintf(server, "Upgrade: websocket\r\n")
		fmt.Fprintf(server, "Connection: Upgrade\r\n")
		fmt.Fprintf(server, "Sec-WebSocket-Accept: not-the-right-hash\r\n")
		fmt.Fprintf(server, "\r\n")
	}()

	uri, err := parseWSURI("ws://example.com/")
	require.NoError(t, err)
	cfg := Config{HandshakeTimeout: time.Second}.withDefaults()

	_, err = clientHandshake(client, uri, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandshakeAcceptMismatch)
}

func TestClientHandshakeTimesOut(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	// Server never replies.

	uri, err := parseWSURI("ws://example.com/")
	require.NoError(t, err)
	cfg := Config{HandshakeTimeout: 30 * time.Millisecond}.withDefaults()

	_, err = clientHandshake(client, uri, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandshakeTimeout)
}

func TestClientHandshakeRejectsUnrequestedSubprotocol(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	serveHandshake(t, server, []string{"Sec-WebSocket-Protocol: unrequested"}, nil)

	uri, err := parseWSURI("ws://example.com/")
	require.NoError(t, err)
	cfg := Config{HandshakeTimeout: time.Second, Subprotocol: "chat"}.withDefaults()

	_, err = clientHandshake(client, uri, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandshakeMalformed)
}
