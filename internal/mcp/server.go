// Package mcp serves the payment tools over the Model Context Protocol
// (newline-delimited JSON-RPC 2.0 on stdio).
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const maxMessageSize = 4 << 20

// Server reads requests from in and writes responses to out.
type Server struct {
	handler *ToolHandler
	info    ServerInfo
	in      io.Reader
	out     io.Writer
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewServer creates a Server. Logs must not go to out.
func NewServer(handler *ToolHandler, info ServerInfo, in io.Reader, out io.Writer, logger *slog.Logger) *Server {
	return &Server{
		handler: handler,
		info:    info,
		in:      in,
		out:     out,
		logger:  logger.With(slog.String("component", "mcp_server")),
	}
}

// Run serves until in reaches EOF or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(s.in)
		sc.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	s.logger.InfoContext(ctx, "mcp server started", slog.String("protocol", ProtocolVersion))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, open := <-lines:
			if !open {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("mcp: read: %w", err)
					}
				default:
				}
				s.logger.InfoContext(ctx, "mcp input closed")
				return nil
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if resp := s.HandleMessage(ctx, line); resp != nil {
				if err := s.write(resp); err != nil {
					return err
				}
			}
		}
	}
}

// HandleMessage processes one raw JSON-RPC message and returns the response,
// or nil for notifications.
func (s *Server) HandleMessage(ctx context.Context, raw []byte) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, codeParseError, "Parse error")
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		return errorResponse(req.ID, codeInvalidRequest, "Invalid Request")
	}

	resp := s.handleRequest(ctx, &req)
	if req.IsNotification() {
		return nil
	}
	return resp
}

func (s *Server) handleRequest(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return result(req.ID, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      s.info,
			Capabilities:    ServerCapabilities{Tools: &ToolsCapability{}},
		})
	case "notifications/initialized", "notifications/cancelled":
		return nil
	case "ping":
		return result(req.ID, struct{}{})
	case "tools/list":
		return result(req.ID, ListToolsResult{Tools: s.handler.Tools()})
	case "tools/call":
		return s.handleCallTool(ctx, req)
	default:
		return errorResponse(req.ID, codeMethodNotFound, "Method not found")
	}
}

func (s *Server) handleCallTool(ctx context.Context, req *Request) *Response {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return errorResponse(req.ID, codeInvalidParams, "Invalid params")
	}
	if !hasTool(s.handler.Tools(), params.Name) {
		return errorResponse(req.ID, codeMethodNotFound, "Unknown tool: "+params.Name)
	}

	callID := uuid.NewString()
	s.logger.DebugContext(ctx, "tool call",
		slog.String("call_id", callID),
		slog.String("tool", params.Name),
	)

	env := s.handler.Call(ctx, params.Name, params.Arguments)

	var body any = env.Data
	if !env.Success {
		body = map[string]string{"error": env.Error}
	}
	text, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		s.logger.ErrorContext(ctx, "encode tool result",
			slog.String("call_id", callID),
			slog.String("error", err.Error()),
		)
		text, _ = json.MarshalIndent(map[string]string{"error": "failed to encode result"}, "", "  ")
		env.Success = false
	}

	return result(req.ID, CallToolResult{
		Content: []ToolContent{{Type: "text", Text: string(text)}},
		IsError: !env.Success,
	})
}

func (s *Server) write(resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("mcp: encode response: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return nil
		}
		return fmt.Errorf("mcp: write: %w", err)
	}
	return nil
}

func result(id json.RawMessage, v any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: v}
}

func errorResponse(id json.RawMessage, code int, msg string) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: msg}}
}
