package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(in io.Reader, out io.Writer) *Server {
	return NewServer(newTestHandler(&fakePayments{healthy: true}), ServerInfo{Name: "crypto-payment-mcp", Version: "test"}, in, out, testLogger())
}

func TestServer_Initialize(t *testing.T) {
	s := newTestServer(nil, io.Discard)
	resp := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	got := resp.Result.(InitializeResult)
	assert.Equal(t, ProtocolVersion, got.ProtocolVersion)
	assert.Equal(t, "crypto-payment-mcp", got.ServerInfo.Name)
	assert.NotNil(t, got.Capabilities.Tools)
	assert.Equal(t, json.RawMessage(`1`), resp.ID)
}

func TestServer_Notifications(t *testing.T) {
	s := newTestServer(nil, io.Discard)
	assert.Nil(t, s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)))
	// Unknown notifications are dropped silently.
	assert.Nil(t, s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"something/else"}`)))
}

func TestServer_Errors(t *testing.T) {
	s := newTestServer(nil, io.Discard)
	tests := []struct {
		name, msg string
		code      int
	}{
		{"parse", `{not json`, codeParseError},
		{"version", `{"jsonrpc":"1.0","id":1,"method":"tools/list"}`, codeInvalidRequest},
		{"method", `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`, codeMethodNotFound},
		{"params", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":[]}`, codeInvalidParams},
		{"tool", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nope"}}`, codeMethodNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.HandleMessage(context.Background(), []byte(tt.msg))
			require.NotNil(t, resp)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}

	resp := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"nope"}}`))
	assert.Equal(t, "Unknown tool: nope", resp.Error.Message)
}

func TestServer_ToolsList(t *testing.T) {
	s := newTestServer(nil, io.Discard)
	resp := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":"a","method":"tools/list"}`))
	list := resp.Result.(ListToolsResult)
	assert.Len(t, list.Tools, len(baseCatalog))
	for _, tool := range list.Tools {
		assert.Equal(t, "object", tool.InputSchema.Type, tool.Name)
		assert.NotNil(t, tool.InputSchema.Required, tool.Name)
	}
}

func TestServer_ToolCallResultText(t *testing.T) {
	s := newTestServer(nil, io.Discard)

	resp := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"crypto_get_token_price","arguments":{"symbol":"BTC"}}}`))
	res := resp.Result.(CallToolResult)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "text", res.Content[0].Type)
	assert.Contains(t, res.Content[0].Text, "\n  \"symbol\": \"BTC\"")

	resp = s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"crypto_get_token_price","arguments":{}}}`))
	res = resp.Result.(CallToolResult)
	assert.True(t, res.IsError)
	assert.JSONEq(t, `{"error":"symbol is required"}`, res.Content[0].Text)
}

func TestServer_RunOverPipe(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	s := newTestServer(inR, outW)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	out := bufio.NewScanner(outR)
	send := func(msg string) {
		_, err := io.WriteString(inW, msg+"\n")
		require.NoError(t, err)
	}

	send(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	require.True(t, out.Scan())
	assert.Contains(t, out.Text(), `"protocolVersion":"2024-11-05"`)

	send(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	send(``)
	send(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"crypto_health_check"}}`)
	require.True(t, out.Scan())
	line := out.Text()
	assert.True(t, strings.HasPrefix(line, `{"jsonrpc":"2.0","id":2,`), line)
	assert.Contains(t, line, `healthy`)

	require.NoError(t, inW.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("server did not stop on EOF")
	}
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	inR, _ := io.Pipe()
	s := newTestServer(inR, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop on cancel")
	}
}
