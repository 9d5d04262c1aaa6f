package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"home-dispatch/internal/domain"
	"home-dispatch/internal/infra"
)

const apiVersion = "2023-06-01"

// ClaudeClient resolves intents with the Messages API tool use.
type ClaudeClient struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	model      string
	caller     *infra.Caller
}

func NewClaudeClient(apiKey, model string) *ClaudeClient {
	return NewClaudeClientWithURL(apiKey, model, "https://api.anthropic.com/v1")
}

func NewClaudeClientWithURL(apiKey, model, baseURL string) *ClaudeClient {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &ClaudeClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		caller:     infra.NewCaller(infra.DefaultCallPolicy()),
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type toolChoice struct {
	Type string `json:"type"`
}

type request struct {
	Model      string      `json:"model"`
	MaxTokens  int         `json:"max_tokens"`
	System     string      `json:"system,omitempty"`
	Messages   []message   `json:"messages"`
	Tools      []tool      `json:"tools,omitempty"`
	ToolChoice *toolChoice `json:"tool_choice,omitempty"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type response struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

func (c *ClaudeClient) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.Resolution, error) {
	reqBody := request{
		Model:     c.model,
		MaxTokens: 1024,
		System:    req.Instructions,
	}
	for _, turn := range req.History {
		reqBody.Messages = append(reqBody.Messages, message{Role: string(turn.Role), Content: turn.Content})
	}
	reqBody.Messages = append(reqBody.Messages, message{Role: "user", Content: req.Text})

	for _, op := range req.Catalog {
		reqBody.Tools = append(reqBody.Tools, tool{
			Name:        op.Name,
			Description: op.Description,
			InputSchema: op.Parameters,
		})
	}
	if len(reqBody.Tools) > 0 {
		reqBody.ToolChoice = &toolChoice{Type: "auto"}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var result response
	err = c.caller.Do(ctx, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(bodyBytes))
		if err != nil {
			return fmt.Errorf("%w: creating request: %v", infra.ErrPermanent, err)
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", apiVersion)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return infra.StatusError("claude", resp.StatusCode, respBody)
		}

		if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("%w: decoding response: %v", infra.ErrPermanent, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Content) == 0 {
		return nil, fmt.Errorf("empty response from claude")
	}

	resolution := &domain.Resolution{}
	var texts []string
	for _, block := range result.Content {
		switch block.Type {
		case "text":
			if t := strings.TrimSpace(block.Text); t != "" {
				texts = append(texts, t)
			}
		case "tool_use":
			resolution.Actions = append(resolution.Actions, domain.ActionRequest{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	resolution.Reply = strings.Join(texts, "\n")

	return resolution, nil
}
