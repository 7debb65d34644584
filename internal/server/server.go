// Package server exposes the repository operations as a JSON-RPC 2.0
// tool server over stdio, for IDE and assistant integration. The server
// wraps the repository engine behind the mutual-exclusion boundary the
// core requires when adapted into a concurrent caller: mutating tools are
// serialized, read-only tools run concurrently.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"promptvc/internal/repo"
)

// Standard JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

const protocolVersion = "2024-11-05"

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server serves the tool protocol over an in/out stream pair.
type Server struct {
	repo   *repo.Repository
	logger *zap.Logger

	// writeMu guards the output stream; mutateMu serializes mutating
	// repository operations (commit, checkout, tag, init).
	writeMu  sync.Mutex
	mutateMu sync.Mutex
}

// New builds a tool server over an opened repository handle.
func New(r *repo.Repository, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{repo: r, logger: logger}
}

// Run reads newline-delimited JSON-RPC requests from in and writes
// responses to out until EOF or context cancellation.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			s.write(out, response{
				JSONRPC: "2.0",
				Error:   &rpcError{Code: codeParseError, Message: "parse error: " + err.Error()},
			})
			continue
		}

		resp := s.dispatch(ctx, &req)
		if resp != nil {
			s.write(out, *resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *request) *response {
	traceID := uuid.New().String()
	logger := s.logger.With(
		zap.String("trace_id", traceID),
		zap.String("method", req.Method))
	logger.Debug("handling request")

	resp := &response{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo": map[string]any{
				"name":    "promptvc",
				"version": "1.0.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
		}

	case "notifications/initialized":
		// Notification; no response.
		return nil

	case "tools/list":
		resp.Result = map[string]any{"tools": toolDefinitions()}

	case "tools/call":
		var params struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = &rpcError{Code: codeInvalidParams, Message: "invalid params: " + err.Error()}
			break
		}

		result, err := s.callTool(ctx, params.Name, params.Arguments)
		if err != nil {
			logger.Warn("tool call failed", zap.String("tool", params.Name), zap.Error(err))
			resp.Result = toolError(err)
			break
		}
		resp.Result = toolResult(result)

	default:
		resp.Error = &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}
	}
	return resp
}

func (s *Server) write(out io.Writer, resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("serializing response", zap.Error(err))
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	fmt.Fprintf(out, "%s\n", data)
}

// toolResult wraps a handler result into the tool-call content envelope.
func toolResult(v any) map[string]any {
	text, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		text = []byte(fmt.Sprintf("%v", v))
	}
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": string(text)}},
	}
}

func toolError(err error) map[string]any {
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": err.Error()}},
		"isError": true,
	}
}
