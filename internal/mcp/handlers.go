package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kwehner/mzusi/internal/config"
	"github.com/kwehner/mzusi/internal/errors"
	"github.com/kwehner/mzusi/internal/resolve"
	"github.com/kwehner/mzusi/internal/usi"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	svc *resolve.Service
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *resolve.Service, cfg *config.Config) *Handlers {
	return &Handlers{svc: svc, cfg: cfg}
}

// decodeArgs maps a tool call's argument object onto a typed request
// struct. Arguments arrive as map[string]any, so they round-trip through
// JSON; anything that does not fit the target shape comes back as
// INVALID_REQUEST rather than a panic on a bad assertion.
func decodeArgs[T any](req mcp.CallToolRequest) (T, *errors.ResolveError) {
	var out T
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return out, errors.NewInvalidRequest("unreadable tool arguments: " + err.Error())
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errors.NewInvalidRequest("invalid tool arguments: " + err.Error())
	}
	return out, nil
}

// Request types for each tool

// ResolveRequest represents the arguments for spectrum_resolve.
type ResolveRequest struct {
	USI          string   `json:"usi"`
	Prefixes     []string `json:"prefixes,omitempty"`
	MetadataOnly bool     `json:"metadata_only,omitempty"`
}

// LocateRequest represents the arguments for spectrum_locate.
type LocateRequest struct {
	USI      string   `json:"usi"`
	Prefixes []string `json:"prefixes,omitempty"`
}

// ParseRequest represents the arguments for usi_parse.
type ParseRequest struct {
	USI string `json:"usi"`
}

// ParseResponse is the component breakdown returned by usi_parse.
type ParseResponse struct {
	Collection     string `json:"collection"`
	Run            string `json:"run"`
	IndexType      string `json:"index_type"`
	IndexValue     string `json:"index_value"`
	Interpretation string `json:"interpretation,omitempty"`
	Canonical      string `json:"canonical"`
}

// HandleResolve handles the spectrum_resolve tool call.
func (h *Handlers) HandleResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, derr := decodeArgs[ResolveRequest](req)
	if derr != nil {
		return errorResult(derr), nil
	}

	result, err := h.svc.Resolve(ctx, resolve.ResolveInput{
		USI:          input.USI,
		Prefixes:     input.Prefixes,
		MetadataOnly: input.MetadataOnly,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLocate handles the spectrum_locate tool call.
func (h *Handlers) HandleLocate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, derr := decodeArgs[LocateRequest](req)
	if derr != nil {
		return errorResult(derr), nil
	}

	result, err := h.svc.Locate(resolve.LocateInput{
		USI:      input.USI,
		Prefixes: input.Prefixes,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleParse handles the usi_parse tool call.
func (h *Handlers) HandleParse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, derr := decodeArgs[ParseRequest](req)
	if derr != nil {
		return errorResult(derr), nil
	}

	ident, err := usi.Parse(input.USI)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(ParseResponse{
		Collection:     ident.Collection,
		Run:            ident.Run,
		IndexType:      string(ident.IndexType),
		IndexValue:     ident.IndexValue,
		Interpretation: ident.Interpretation,
		Canonical:      ident.String(),
	})
}

// HandleInvalidate handles the cache_invalidate tool call.
func (h *Handlers) HandleInvalidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.svc.InvalidateCache()
	return successResult(map[string]string{"status": "ok"})
}

// errorResult converts an error into an MCP error result with a structured
// JSON payload.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if re, ok := err.(*errors.ResolveError); ok {
		errorObj := map[string]any{
			"code":    re.Code,
			"message": re.Message,
			"status":  re.Status,
		}
		// Details are withheld for internal errors to avoid leaking paths
		// or driver messages.
		if re.Code != errors.ErrInternal && re.Details != nil {
			errorObj["details"] = re.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
