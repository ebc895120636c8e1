package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/magnecruit/backend/internal/ai"
	"github.com/magnecruit/backend/internal/logger"
	"github.com/magnecruit/backend/internal/utils"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 2
	defaultTimeout    = 60 * time.Second
	defaultRetryBase  = 2 * time.Second
	defaultMaxLogLen  = 200

	// Quota errors suggesting a wait longer than this are not worth
	// blocking a chat turn for.
	maxQuotaDelay = 30 * time.Second
)

// chatSession is the slice of genai.Chat this client uses.
type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// chatCreator is the slice of genai.Chats this client uses. Tests substitute
// a fake; production wraps the real SDK service.
type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (g genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	return g.chats.Create(ctx, model, config, history)
}

// Generation holds the model generation parameters. Zero values are left to
// the provider defaults.
type Generation struct {
	Temperature     float32 `mapstructure:"temperature"`
	TopP            float32 `mapstructure:"top-p"`
	TopK            float32 `mapstructure:"top-k"`
	MaxOutputTokens int32   `mapstructure:"max-output-tokens"`
}

// Config configures the Gemini client. An empty APIKey yields a client whose
// calls fail with ai.ErrNotConfigured instead of a construction error, so the
// rest of the service can run without model access.
type Config struct {
	APIKey         string
	Model          string
	MaxRetries     int
	TimeoutSeconds int
	MaxLogLength   int
	Generation     Generation
}

// Client implements ai.Gateway against the Gemini API.
type Client struct {
	chats      chatCreator
	model      string
	maxRetries int
	timeout    time.Duration
	retryBase  time.Duration
	gen        Generation
	maxLogLen  int
	logger     *zap.Logger
}

// New builds a Gemini-backed gateway.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLen
	}

	c := &Client{
		model:      model,
		maxRetries: maxRetries,
		timeout:    timeout,
		retryBase:  defaultRetryBase,
		gen:        cfg.Generation,
		maxLogLen:  maxLogLen,
		logger:     logger.WithCommonFields(log, "gemini", model),
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		c.logger.Warn("gemini api key is not set; model calls will fail as not configured")
		return c, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	c.chats = genaiChats{chats: client.Chats}
	return c, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// Complete sends one turn to Gemini and maps every outcome onto the gateway
// contract: free text, a tool call, or a typed error.
func (c *Client) Complete(ctx context.Context, req ai.Request) (*ai.Reply, error) {
	if c == nil || c.chats == nil {
		return nil, ai.ErrNotConfigured
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, &ai.TransportError{Err: errors.New("prompt must not be empty")}
	}

	config := c.buildConfig(req)
	history := buildHistory(req.History)

	c.logger.Debug("gemini request",
		zap.Int("history_turns", len(history)),
		zap.Int("tools", len(req.Tools)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, c.maxLogLen)),
	)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.send(ctx, config, history, prompt)
		if err == nil {
			return c.toReply(resp)
		}
		lastErr = err

		delay, retryable := retryDelay(err, c.retryBase, attempt)
		if !retryable || attempt == c.maxRetries {
			break
		}

		c.logger.Warn("gemini call failed; retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if werr := utils.WaitFor(ctx, delay); werr != nil {
			return nil, &ai.TransportError{Err: werr}
		}
	}

	return nil, &ai.TransportError{Err: lastErr}
}

func (c *Client) send(ctx context.Context, config *genai.GenerateContentConfig, history []*genai.Content, prompt string) (*genai.GenerateContentResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chat, err := c.chats.Create(callCtx, c.model, config, history)
	if err != nil {
		return nil, err
	}
	return chat.SendMessage(callCtx, genai.Part{Text: prompt})
}

func (c *Client) buildConfig(req ai.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if system := strings.TrimSpace(req.System); system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	if len(req.Tools) > 0 {
		config.Tools = buildTools(req.Tools)
	}

	if c.gen.Temperature > 0 {
		config.Temperature = genai.Ptr(c.gen.Temperature)
	}
	if c.gen.TopP > 0 {
		config.TopP = genai.Ptr(c.gen.TopP)
	}
	if c.gen.TopK > 0 {
		config.TopK = genai.Ptr(c.gen.TopK)
	}
	if c.gen.MaxOutputTokens > 0 {
		config.MaxOutputTokens = c.gen.MaxOutputTokens
	}

	return config
}

func buildHistory(turns []ai.Turn) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}

		role := genai.RoleUser
		if turn.Role == ai.RoleModel {
			role = genai.RoleModel
		}

		history = append(history, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: text}},
		})
	}
	return history
}

func buildTools(decls []ai.ToolDecl) []*genai.Tool {
	tools := make([]*genai.Tool, 0, len(decls))
	for _, decl := range decls {
		properties := make(map[string]*genai.Schema, len(decl.Params))
		var required []string

		for _, param := range decl.Params {
			schema := &genai.Schema{Description: param.Description}
			switch param.Type {
			case ai.ParamStringList:
				schema.Type = genai.TypeArray
				schema.Items = &genai.Schema{Type: genai.TypeString}
			default:
				schema.Type = genai.TypeString
			}
			properties[param.Name] = schema

			if param.Required {
				required = append(required, param.Name)
			}
		}

		tools = append(tools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        decl.Name,
				Description: decl.Description,
				Parameters: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: properties,
					Required:   required,
				},
			}},
		})
	}
	return tools
}

func (c *Client) toReply(resp *genai.GenerateContentResponse) (*ai.Reply, error) {
	if resp == nil {
		return nil, &ai.TransportError{Err: errors.New("gemini api returned no response")}
	}

	if resp.PromptFeedback != nil &&
		resp.PromptFeedback.BlockReason != "" &&
		resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		return nil, &ai.BlockedError{Reason: string(resp.PromptFeedback.BlockReason)}
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.FunctionCall != nil {
				call := &ai.ToolCall{
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				}
				c.logger.Debug("gemini tool call", zap.String("tool", call.Name))
				return &ai.Reply{Call: call}, nil
			}

			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		for _, candidate := range resp.Candidates {
			if candidate != nil && candidate.FinishReason == genai.FinishReasonSafety {
				return nil, &ai.BlockedError{Reason: string(candidate.FinishReason)}
			}
		}
		return nil, &ai.TransportError{Err: errors.New("gemini api returned empty response")}
	}

	c.logger.Debug("gemini response",
		zap.String("response_preview", utils.TruncateForLog(output, c.maxLogLen)),
	)
	return &ai.Reply{Text: output}, nil
}

var quotaDelayPattern = regexp.MustCompile(`retry after (\d+)`)

// retryDelay reports whether the error is worth retrying and how long to
// wait. Quota errors suggesting a long wait are treated as terminal.
func retryDelay(err error, base time.Duration, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	switch apiErr.Code {
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return base * time.Duration(attempt), true
	case http.StatusTooManyRequests:
		if match := quotaDelayPattern.FindStringSubmatch(apiErr.Message); len(match) == 2 {
			seconds, perr := strconv.Atoi(match[1])
			if perr == nil {
				suggested := time.Duration(seconds) * time.Second
				if suggested > maxQuotaDelay {
					return 0, false
				}
				return suggested, true
			}
		}
		return base * time.Duration(attempt), true
	default:
		return 0, false
	}
}
