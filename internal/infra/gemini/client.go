package gemini

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

// Client resolves intents with Gemini function calling.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	model      string
	caller     *infra.Caller
}

func NewClient(apiKey, model string) *Client {
	return NewClientWithURL(apiKey, model, "https://generativelanguage.googleapis.com/v1beta")
}

func NewClientWithURL(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		caller:     infra.NewCaller(infra.DefaultCallPolicy()),
	}
}

type content struct {
	Parts []part `json:"parts"`
	Role  string `json:"role,omitempty"`
}

type part struct {
	Text         string        `json:"text,omitempty"`
	FunctionCall *functionCall `json:"functionCall,omitempty"`
}

type functionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type tool struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type toolConfig struct {
	FunctionCallingConfig struct {
		Mode string `json:"mode"`
	} `json:"functionCallingConfig"`
}

type request struct {
	Contents         []content        `json:"contents"`
	SystemInstruct   *content         `json:"systemInstruction,omitempty"`
	Tools            []tool           `json:"tools,omitempty"`
	ToolConfig       *toolConfig      `json:"toolConfig,omitempty"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

type response struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

func (c *Client) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.Resolution, error) {
	reqBody := request{
		GenerationConfig: generationConfig{
			MaxOutputTokens: 1024,
			Temperature:     0.1,
		},
	}
	if req.Instructions != "" {
		reqBody.SystemInstruct = &content{Parts: []part{{Text: req.Instructions}}}
	}
	for _, turn := range req.History {
		role := "user"
		if turn.Role == domain.RoleAssistant {
			role = "model"
		}
		reqBody.Contents = append(reqBody.Contents, content{Role: role, Parts: []part{{Text: turn.Content}}})
	}
	reqBody.Contents = append(reqBody.Contents, content{Role: "user", Parts: []part{{Text: req.Text}}})

	if len(req.Catalog) > 0 {
		decls := make([]functionDeclaration, 0, len(req.Catalog))
		for _, op := range req.Catalog {
			decls = append(decls, functionDeclaration{
				Name:        op.Name,
				Description: op.Description,
				Parameters:  declarationParameters(op.Parameters),
			})
		}
		reqBody.Tools = []tool{{FunctionDeclarations: decls}}
		reqBody.ToolConfig = &toolConfig{}
		reqBody.ToolConfig.FunctionCallingConfig.Mode = "AUTO"
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var result response
	err = c.caller.Do(ctx, func(ctx context.Context) error {
		endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			return fmt.Errorf("%w: creating request: %v", infra.ErrPermanent, err)
		}

		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return infra.StatusError("gemini", resp.StatusCode, respBody)
		}

		if err = json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("%w: decoding response: %v", infra.ErrPermanent, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Error != nil {
		return nil, fmt.Errorf("gemini error: %s", result.Error.Message)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from gemini")
	}

	resolution := &domain.Resolution{}
	var texts []string
	for i, p := range result.Candidates[0].Content.Parts {
		if p.FunctionCall != nil {
			resolution.Actions = append(resolution.Actions, domain.ActionRequest{
				ID:        fmt.Sprintf("call_%d", i),
				Name:      p.FunctionCall.Name,
				Arguments: p.FunctionCall.Args,
			})
			continue
		}
		if t := strings.TrimSpace(p.Text); t != "" {
			texts = append(texts, t)
		}
	}
	resolution.Reply = strings.Join(texts, "\n")

	return resolution, nil
}

// declarationParameters drops object schemas without properties, which the
// API rejects for parameterless functions.
func declarationParameters(schema map[string]any) map[string]any {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return nil
	}
	return schema
}
