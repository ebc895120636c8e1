package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/magnecruit/backend/internal/ai"
)

type fakeChatCreator struct {
	mu    sync.Mutex
	calls []chatCallRecord
	queue map[string][]fakeChatResponse
}

type chatCallRecord struct {
	model   string
	config  *genai.GenerateContentConfig
	history []*genai.Content
	chat    *fakeChat
}

type fakeChatResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeChat struct {
	mu       sync.Mutex
	response fakeChatResponse
	messages []string
}

func (f *fakeChat) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, part := range parts {
		f.messages = append(f.messages, part.Text)
	}
	return f.response.resp, f.response.err
}

func newFakeChatCreator() *fakeChatCreator {
	return &fakeChatCreator{queue: make(map[string][]fakeChatResponse)}
}

func (f *fakeChatCreator) enqueue(model string, resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue[model] = append(f.queue[model], fakeChatResponse{resp: resp, err: err})
}

func (f *fakeChatCreator) Create(_ context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	responses := f.queue[model]
	if len(responses) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := responses[0]
	f.queue[model] = responses[1:]
	chat := &fakeChat{response: res}
	f.calls = append(f.calls, chatCallRecord{model: model, config: config, history: history, chat: chat})
	return chat, nil
}

func newTestClient(chats chatCreator) *Client {
	return &Client{
		chats:      chats,
		model:      "gemini-test",
		maxRetries: 2,
		timeout:    defaultTimeout,
		retryBase:  0,
		maxLogLen:  defaultMaxLogLen,
		logger:     zap.NewNop(),
	}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestCompleteReturnsText(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-test", textResponse("hello there"), nil)

	c := newTestClient(chats)
	reply, err := c.Complete(context.Background(), ai.Request{
		Prompt: "hi",
		System: "be brief",
		History: []ai.Turn{
			{Role: ai.RoleUser, Text: "earlier question"},
			{Role: ai.RoleModel, Text: "earlier answer"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reply.Text != "hello there" {
		t.Fatalf("unexpected text: %q", reply.Text)
	}
	if reply.Call != nil {
		t.Fatalf("expected no tool call")
	}

	if len(chats.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(chats.calls))
	}
	call := chats.calls[0]

	if call.config == nil || call.config.SystemInstruction == nil {
		t.Fatal("expected system instruction to be set")
	}
	if got := call.config.SystemInstruction.Parts[0].Text; got != "be brief" {
		t.Fatalf("unexpected system instruction: %q", got)
	}

	if len(call.history) != 2 {
		t.Fatalf("expected 2 history turns, got %d", len(call.history))
	}
	if call.history[0].Role != genai.RoleUser || call.history[1].Role != genai.RoleModel {
		t.Fatalf("unexpected history roles: %s, %s", call.history[0].Role, call.history[1].Role)
	}

	if len(call.chat.messages) != 1 || call.chat.messages[0] != "hi" {
		t.Fatalf("unexpected chat message: %+v", call.chat.messages)
	}
}

func TestCompleteReturnsToolCall(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-test", &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{
				FunctionCall: &genai.FunctionCall{
					Name: "generate_job_sections",
					Args: map[string]any{"target_role": "Backend Engineer"},
				},
			}}},
		}},
	}, nil)

	c := newTestClient(chats)
	reply, err := c.Complete(context.Background(), ai.Request{
		Prompt: "generate it",
		Tools: []ai.ToolDecl{{
			Name:        "generate_job_sections",
			Description: "build sections",
			Params: []ai.Param{
				{Name: "target_role", Type: ai.ParamString},
				{Name: "responsibilities", Type: ai.ParamStringList},
			},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reply.Call == nil {
		t.Fatal("expected a tool call")
	}
	if reply.Call.Name != "generate_job_sections" {
		t.Fatalf("unexpected tool name: %q", reply.Call.Name)
	}
	if reply.Call.Args["target_role"] != "Backend Engineer" {
		t.Fatalf("unexpected args: %+v", reply.Call.Args)
	}

	call := chats.calls[0]
	if len(call.config.Tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(call.config.Tools))
	}
	params := call.config.Tools[0].FunctionDeclarations[0].Parameters
	if params.Properties["target_role"].Type != genai.TypeString {
		t.Fatal("expected target_role to be a string param")
	}
	if params.Properties["responsibilities"].Type != genai.TypeArray {
		t.Fatal("expected responsibilities to be an array param")
	}
}

func TestCompleteRetriesOnTemporaryError(t *testing.T) {
	chats := newFakeChatCreator()
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	chats.enqueue("gemini-test", nil, tempErr)
	chats.enqueue("gemini-test", textResponse("retry ok"), nil)

	c := newTestClient(chats)
	reply, err := c.Complete(context.Background(), ai.Request{Prompt: "msg"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if reply.Text != "retry ok" {
		t.Fatalf("unexpected output: %q", reply.Text)
	}
	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}
}

func TestCompleteStopsAfterRetriesExhausted(t *testing.T) {
	chats := newFakeChatCreator()
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	chats.enqueue("gemini-test", nil, tempErr)
	chats.enqueue("gemini-test", nil, tempErr)

	c := newTestClient(chats)
	_, err := c.Complete(context.Background(), ai.Request{Prompt: "msg"})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}

	var transport *ai.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected transport error, got %T", err)
	}
	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}
}

func TestCompleteDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	chats := newFakeChatCreator()
	quotaErr := genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	}
	chats.enqueue("gemini-test", nil, quotaErr)

	c := newTestClient(chats)
	_, err := c.Complete(context.Background(), ai.Request{Prompt: "msg"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(chats.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(chats.calls))
	}
}

func TestCompleteMapsBlockedPrompt(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-test", &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
			BlockReason: genai.BlockedReasonSafety,
		},
	}, nil)

	c := newTestClient(chats)
	_, err := c.Complete(context.Background(), ai.Request{Prompt: "msg"})

	var blocked *ai.BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected blocked error, got %v", err)
	}
	if blocked.Reason == "" {
		t.Fatal("expected a block reason")
	}
}

func TestCompleteNotConfigured(t *testing.T) {
	c := &Client{model: "gemini-test", logger: zap.NewNop()}
	_, err := c.Complete(context.Background(), ai.Request{Prompt: "msg"})
	if !errors.Is(err, ai.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCompleteEmptyResponseIsTransportError(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-test", textResponse(""), nil)
	chats.enqueue("gemini-test", textResponse(""), nil)

	c := newTestClient(chats)
	_, err := c.Complete(context.Background(), ai.Request{Prompt: "msg"})

	var transport *ai.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
