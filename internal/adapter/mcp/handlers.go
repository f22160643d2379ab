package mcp

import (
	"context"
	"encoding/json"
	"errors"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"webscout/internal/domain"
)

type initializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ClientInfo      mcpgo.Implementation `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    serverCapabilities `json:"capabilities"`
	ServerInfo      mcpgo.Implementation `json:"serverInfo"`
}

type serverCapabilities struct {
	Tools toolsCapability `json:"tools"`
}

type toolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

func (s *Session) handleInitialize(ctx context.Context, req *request) {
	if !s.transition(StateUninitialized, StateNegotiating) {
		s.send(ctx, newErrorResponse(req.ID, codeInvalidParams,
			"initialize received in state "+s.currentState().String(), nil))
		return
	}

	var p initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			s.setState(StateUninitialized)
			s.send(ctx, newErrorResponse(req.ID, codeInvalidParams, "invalid initialize params: "+err.Error(), nil))
			return
		}
	}

	version := p.ProtocolVersion
	if version == "" {
		version = mcpgo.LATEST_PROTOCOL_VERSION
	}
	s.logger.Info("initialize",
		"client", p.ClientInfo.Name,
		"client_version", p.ClientInfo.Version,
		"protocol_version", version)

	s.send(ctx, newResponse(req.ID, initializeResult{
		ProtocolVersion: version,
		Capabilities:    serverCapabilities{Tools: toolsCapability{}},
		ServerInfo:      s.info,
	}))
}

func (s *Session) handlePing(ctx context.Context, req *request) {
	if s.currentState() == StateUninitialized {
		s.send(ctx, newErrorResponse(req.ID, codeNotInitialized, "server not initialized", nil))
		return
	}
	s.send(ctx, newResponse(req.ID, struct{}{}))
}

func (s *Session) handleToolsList(ctx context.Context, req *request) {
	if s.currentState() != StateReady {
		s.send(ctx, newErrorResponse(req.ID, codeNotInitialized, "server not initialized", nil))
		return
	}

	schemas := s.executor.Schemas()
	tools := make([]mcpgo.Tool, 0, len(schemas))
	for _, schema := range schemas {
		tools = append(tools, toMCPTool(schema))
	}
	s.send(ctx, newResponse(req.ID, mcpgo.ListToolsResult{Tools: tools}))
}

func (s *Session) handleToolsCall(ctx context.Context, req *request) {
	if s.currentState() != StateReady {
		s.send(ctx, newErrorResponse(req.ID, codeNotInitialized, "server not initialized", nil))
		return
	}

	var p callToolParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		s.send(ctx, newErrorResponse(req.ID, codeInvalidParams, "invalid tools/call params: "+err.Error(), nil))
		return
	}
	if p.Name == "" {
		s.send(ctx, newErrorResponse(req.ID, codeInvalidParams, "tool name is required", nil))
		return
	}

	tool, err := s.executor.Get(p.Name)
	if err != nil {
		s.send(ctx, newErrorResponse(req.ID, codeInvalidParams,
			"unknown tool "+p.Name, map[string]string{"kind": domain.ErrorKind(err)}))
		return
	}

	args := p.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return // session shutting down, response no longer owed
		}
		s.send(ctx, newErrorResponse(req.ID, codeInternalError, err.Error(),
			map[string]string{"kind": domain.ErrorKind(err)}))
		return
	}

	s.send(ctx, newResponse(req.ID, mcpgo.CallToolResult{
		Content: []mcpgo.Content{mcpgo.NewTextContent(result.Content)},
		IsError: result.IsError,
	}))
}

// toMCPTool converts a domain schema into the wire tool shape. The stored
// parameters document is already a JSON Schema object.
func toMCPTool(schema domain.ToolSchema) mcpgo.Tool {
	tool := mcpgo.Tool{
		Name:        schema.Name,
		Description: schema.Description,
	}

	var parsed struct {
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(schema.Parameters, &parsed); err == nil && parsed.Type != "" {
		tool.InputSchema = mcpgo.ToolInputSchema{
			Type:       parsed.Type,
			Properties: parsed.Properties,
			Required:   parsed.Required,
		}
	}
	return tool
}
