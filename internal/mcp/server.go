// Package mcp exposes the string catalog as Model Context Protocol tools so
// agents can ingest strings and search the catalog over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rzpsarthak13/string-catalog/internal/core"
	"github.com/rzpsarthak13/string-catalog/pkg/stringcatalog"
)

// queryKeys are the structured parameters forwarded to Client.Query.
var queryKeys = []string{
	"is_palindrome",
	"min_length",
	"max_length",
	"word_count",
	"contains_character",
}

// NewServer creates an MCP server with the catalog tools registered.
func NewServer(client stringcatalog.Client, version string) *server.MCPServer {
	if version == "" {
		version = "dev"
	}

	s := server.NewMCPServer(
		"stringcatalog",
		version,
		server.WithToolCapabilities(false),
	)

	registerCreateTool(s, client)
	registerGetTool(s, client)
	registerDeleteTool(s, client)
	registerQueryTool(s, client)
	registerNaturalQueryTool(s, client)

	return s
}

// ServeStdio blocks serving s over stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func registerCreateTool(s *server.MCPServer, client stringcatalog.Client) {
	tool := mcp.NewTool("catalog_create",
		mcp.WithDescription("Analyze a string and store it in the catalog. Returns the stored record with its length, palindrome flag, word count, unique characters, SHA-256 hash and character frequency map. Fails if the value is already cataloged."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("The exact string to catalog"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		value, err := req.RequireString("value")
		if err != nil {
			return mcp.NewToolResultError("value is required"), nil
		}
		rec, err := client.Create(ctx, value)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(rec)
	})
}

func registerGetTool(s *server.MCPServer, client stringcatalog.Client) {
	tool := mcp.NewTool("catalog_get",
		mcp.WithDescription("Look up a cataloged string by its exact value."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("The exact string to look up"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		value, err := req.RequireString("value")
		if err != nil {
			return mcp.NewToolResultError("value is required"), nil
		}
		rec, err := client.Get(ctx, value)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(rec)
	})
}

func registerDeleteTool(s *server.MCPServer, client stringcatalog.Client) {
	tool := mcp.NewTool("catalog_delete",
		mcp.WithDescription("Remove a string from the catalog by its exact value."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("The exact string to remove"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		value, err := req.RequireString("value")
		if err != nil {
			return mcp.NewToolResultError("value is required"), nil
		}
		if err := client.Delete(ctx, value); err != nil {
			return toolError(err), nil
		}
		return jsonResult(map[string]interface{}{"deleted": value})
	})
}

func registerQueryTool(s *server.MCPServer, client stringcatalog.Client) {
	tool := mcp.NewTool("catalog_query",
		mcp.WithDescription("List cataloged strings matching every given filter. At least one filter is required."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithBoolean("is_palindrome",
			mcp.Description("Only palindromes (true) or only non-palindromes (false)"),
		),
		mcp.WithNumber("min_length",
			mcp.Description("Minimum length, inclusive"),
		),
		mcp.WithNumber("max_length",
			mcp.Description("Maximum length, inclusive"),
		),
		mcp.WithNumber("word_count",
			mcp.Description("Exact number of words"),
		),
		mcp.WithString("contains_character",
			mcp.Description("A single character the value must contain, case-insensitive"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := client.Query(ctx, queryParams(req.GetArguments()))
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(res)
	})
}

func registerNaturalQueryTool(s *server.MCPServer, client stringcatalog.Client) {
	tool := mcp.NewTool("catalog_search",
		mcp.WithDescription("Search the catalog with plain English, e.g. \"single word palindromic strings\" or \"strings longer than 10 characters containing the letter z\". Returns the matches and the filters the text was understood as."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language description of the strings to find"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}
		res, err := client.QueryNatural(ctx, query)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(res)
	})
}

// queryParams renders the recognized tool arguments in the same textual form
// the HTTP query string carries.
func queryParams(args map[string]interface{}) map[string]string {
	params := make(map[string]string, len(queryKeys))
	for _, key := range queryKeys {
		v, ok := args[key]
		if !ok || v == nil {
			continue
		}
		switch tv := v.(type) {
		case string:
			params[key] = tv
		case bool:
			params[key] = strconv.FormatBool(tv)
		case float64:
			params[key] = strconv.FormatFloat(tv, 'f', -1, 64)
		case json.Number:
			params[key] = tv.String()
		default:
			b, _ := json.Marshal(tv)
			params[key] = string(b)
		}
	}
	return params
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(core.MessageOf(err))
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
