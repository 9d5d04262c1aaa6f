package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"home-dispatch/internal/domain"
	"home-dispatch/internal/infra"
)

const DefaultAzureAPIVersion = "2024-06-01"

// ChatClient resolves intents with chat-completions function calling. It
// talks either to Azure OpenAI (deployment URL + api-key header) or to the
// OpenAI API (model field + bearer token).
type ChatClient struct {
	endpoint   string
	apiKey     string
	model      string
	azure      bool
	httpClient *http.Client
	caller     *infra.Caller
}

func NewAzureChatClient(endpoint, apiKey, deployment, apiVersion string) *ChatClient {
	if apiVersion == "" {
		apiVersion = DefaultAzureAPIVersion
	}
	endpoint = fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimSuffix(endpoint, "/"), url.PathEscape(deployment), url.QueryEscape(apiVersion))

	return &ChatClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		azure:      true,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		caller:     infra.NewCaller(infra.DefaultCallPolicy()),
	}
}

func NewChatClient(apiKey, model string) *ChatClient {
	return NewChatClientWithURL(apiKey, model, "https://api.openai.com/v1")
}

func NewChatClientWithURL(apiKey, model, baseURL string) *ChatClient {
	if model == "" {
		model = "gpt-4.1"
	}
	return &ChatClient{
		endpoint:   strings.TrimSuffix(baseURL, "/") + "/chat/completions",
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		caller:     infra.NewCaller(infra.DefaultCallPolicy()),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	Temperature float64       `json:"temperature"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   *string    `json:"content"`
			ToolCalls []toolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *ChatClient) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.Resolution, error) {
	body := chatRequest{
		Model:    c.model,
		Messages: buildMessages(req),
	}
	for _, op := range req.Catalog {
		body.Tools = append(body.Tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        op.Name,
				Description: op.Description,
				Parameters:  op.Parameters,
			},
		})
	}
	if len(body.Tools) > 0 {
		body.ToolChoice = "auto"
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var result chatResponse
	err = c.caller.Do(ctx, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			return fmt.Errorf("%w: creating request: %v", infra.ErrPermanent, err)
		}

		httpReq.Header.Set("Content-Type", "application/json")
		if c.azure {
			httpReq.Header.Set("api-key", c.apiKey)
		} else {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return infra.StatusError("openai", resp.StatusCode, respBody)
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("%w: decoding response: %v", infra.ErrPermanent, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("empty response from openai")
	}

	msg := result.Choices[0].Message
	resolution := &domain.Resolution{}
	if msg.Content != nil {
		resolution.Reply = strings.TrimSpace(*msg.Content)
	}
	for _, call := range msg.ToolCalls {
		resolution.Actions = append(resolution.Actions, domain.ActionRequest{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}

	return resolution, nil
}

func buildMessages(req domain.ResolveRequest) []chatMessage {
	messages := make([]chatMessage, 0, len(req.History)+2)
	if req.Instructions != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.Instructions})
	}
	for _, turn := range req.History {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	return append(messages, chatMessage{Role: "user", Content: req.Text})
}
