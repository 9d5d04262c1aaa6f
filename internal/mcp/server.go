// Package mcp exposes the home over the Model Context Protocol, so an
// external agent can drive the catalog operations directly or hand over
// free-text commands.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpgo "github.com/felixgeelhaar/mcp-go"

	"home-dispatch/internal/application"
	"home-dispatch/internal/domain"
)

// CommandTool is the tool that runs a free-text command through the
// intent resolver.
const CommandTool = "home_command"

const instructions = `Each catalog tool changes the simulated home directly and returns what happened followed by the current state.
Use home_command to pass a whole sentence to the home's own assistant instead.`

// Config configures the MCP server.
type Config struct {
	Name    string
	Version string
}

// Server wraps an mcp-go server whose tools are the dispatcher's catalog.
type Server struct {
	srv        *mcpgo.Server
	dispatcher *application.Dispatcher
}

func NewServer(dispatcher *application.Dispatcher, cfg Config) *Server {
	if cfg.Name == "" {
		cfg.Name = "home-dispatch"
	}

	srv := mcpgo.NewServer(mcpgo.ServerInfo{
		Name:        cfg.Name,
		Version:     cfg.Version,
		Description: "Natural-language control for a simulated smart home",
		Capabilities: mcpgo.Capabilities{
			Tools: true,
		},
	}, mcpgo.WithInstructions(instructions))

	s := &Server{srv: srv, dispatcher: dispatcher}

	for _, spec := range dispatcher.Catalog().Specs() {
		srv.Tool(spec.Name).
			Description(describe(spec)).
			Handler(s.OperationHandler(spec.Name))
	}
	srv.Tool(CommandTool).
		Description(`Run a free-text home command, e.g. {"text": "turn on the kitchen light and play jazz"}.`).
		Handler(s.CommandHandler())

	return s
}

// OperationHandler returns the tool handler for one catalog operation. A
// skipped action is reported as a tool error.
func (s *Server) OperationHandler(name string) func(context.Context, json.RawMessage) (string, error) {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		res := s.dispatcher.Apply(ctx, domain.ActionRequest{Name: name, Arguments: input})
		if len(res.Outcomes) == 0 {
			return "", fmt.Errorf("%s: not executed", name)
		}
		outcome := res.Outcomes[0]
		if outcome.Err != nil {
			return "", outcome.Err
		}
		if name == "status" {
			return res.Status, nil
		}
		return outcome.Message + "\n\n" + res.Status, nil
	}
}

// CommandHandler returns the handler of CommandTool.
func (s *Server) CommandHandler() func(context.Context, json.RawMessage) (string, error) {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		var req struct {
			Text string `json:"text"`
		}
		if len(input) > 0 {
			if err := json.Unmarshal(input, &req); err != nil {
				return "", fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
			}
		}

		res := s.dispatcher.Handle(ctx, req.Text)
		if res.Err != nil {
			return "", fmt.Errorf("%s: %w", res.Response(), res.Err)
		}
		return res.Response() + "\n\n" + res.Status, nil
	}
}

func (s *Server) ServeStdio(ctx context.Context) error {
	return mcpgo.ServeStdio(ctx, s.srv)
}

func describe(spec domain.OperationSpec) string {
	props, _ := spec.Parameters["properties"].(map[string]any)
	if len(props) == 0 {
		return spec.Description + " Takes no arguments."
	}

	data, err := json.Marshal(spec.Parameters)
	if err != nil {
		return spec.Description
	}
	var sb strings.Builder
	sb.WriteString(spec.Description)
	sb.WriteString(" Arguments (JSON schema): ")
	sb.Write(data)
	return sb.String()
}
