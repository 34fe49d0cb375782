// Package mcp exposes discovery-cycle queries as Model Context Protocol tools
// over stdio.
package mcp

import (
	"context"
	"fmt"
	"sort"

	"discotrack/internal/cache"
	"discotrack/internal/eventlog"
	"discotrack/internal/stats"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

const serverName = "discotrack"

// ServerDeps holds the stores and taxonomy the tools read from.
type ServerDeps struct {
	Cycles   *cache.Coordinator
	Logs     *eventlog.EventStore
	SourceID string
	Pipeline *stats.Pipeline
	Version  string
}

// Server wraps the MCP SDK server with the discotrack tools registered.
type Server struct {
	inner    *mcpsdk.Server
	cycles   *cache.Coordinator
	logs     *eventlog.EventStore
	sourceID string
	pipeline *stats.Pipeline
	tools    []string
}

// NewServer creates a server with every tool registered.
func NewServer(deps ServerDeps) *Server {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := &Server{
		inner:    mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: version}, nil),
		cycles:   deps.Cycles,
		logs:     deps.Logs,
		sourceID: deps.SourceID,
		pipeline: deps.Pipeline,
	}
	s.registerTools()
	return s
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	names := append([]string(nil), s.tools...)
	sort.Strings(names)
	return names
}

// Run serves on stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves on the given transport.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	log.Info().Strs("tools", s.ListToolNames()).Str("source", s.sourceID).Msg("Starting MCP server")
	if err := s.inner.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	addTool(s, ToolNameCycle, cycleToolDescription, s.handleGetCycle)
	addTool(s, ToolNameCohorts, cohortsToolDescription, s.handleCohorts)
	addTool(s, ToolNameState, stateToolDescription, s.handleState)
	addTool(s, ToolNameAssigned, assignedToolDescription, s.handleWasAssigned)
	addTool(s, ToolNameWorkload, workloadToolDescription, s.handleWorkload)
	addTool(s, ToolNameStability, stabilityToolDescription, s.handleStability)
	addTool(s, ToolNameCacheStatus, cacheStatusToolDescription, s.handleCacheStatus)
}

func addTool[In any](s *Server, name, description string, handler mcpsdk.ToolHandlerFor[In, ToolOutput]) {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema[In](),
	}, withLogging(name, handler))
	s.tools = append(s.tools, name)
}

func inputSchema[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("mcp: input schema for %T: %v", *new(T), err))
	}
	return schema
}

// withLogging records every tool call and its outcome.
func withLogging[In any](name string, handler mcpsdk.ToolHandlerFor[In, ToolOutput]) mcpsdk.ToolHandlerFor[In, ToolOutput] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		log.Debug().Str("tool", name).Interface("input", in).Msg("Tool call")
		result, out, err := handler(ctx, req, in)
		if err != nil {
			log.Error().Err(err).Str("tool", name).Msg("Tool call failed")
		} else if result != nil && result.IsError {
			log.Warn().Str("tool", name).Msg("Tool call returned an error result")
		}
		return result, out, err
	}
}
