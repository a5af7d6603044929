package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiLLMClient implements LLMClient using Google's Gemini API.
type GeminiLLMClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiLLMClient creates a new Gemini LLM client.
func NewGeminiLLMClient(ctx context.Context, apiKey, modelID string) (*GeminiLLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to create gemini client: %w", err)
	}

	return &GeminiLLMClient{
		client:  client,
		modelID: modelID,
	}, nil
}

// Complete sends a completion request to Gemini. With a schema the model is
// switched to JSON output and the decoded object is returned in Structured.
func (c *GeminiLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	modelID := c.modelID
	if strings.TrimSpace(req.Model) != "" {
		modelID = req.Model
	}
	model := c.client.GenerativeModel(modelID)

	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.TopP > 0 {
		model.SetTopP(req.TopP)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if req.Schema != nil && req.Schema.Root != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = toGenaiSchema(req.Schema.Root)
	}

	if len(req.System) > 0 {
		systemText := strings.Join(req.System, "\n\n")
		if strings.TrimSpace(systemText) != "" {
			model.SystemInstruction = genai.NewUserContent(genai.Text(systemText))
		}
	}

	history, last, err := geminiHistory(req.Messages)
	if err != nil {
		return LLMResponse{}, err
	}

	cs := model.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: gemini completion failed: %w", err)
	}
	return geminiResult(resp, req.Schema)
}

// geminiHistory splits messages into chat history and the message to send.
// System and blank entries are dropped from the history; assistant turns map to
// the "model" role.
func geminiHistory(messages []ChatMessage) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", errors.New("conversation: gemini requires at least one message")
	}
	last := messages[len(messages)-1]
	if last.Role == ChatRoleAssistant || strings.TrimSpace(last.Content) == "" {
		return nil, "", errors.New("conversation: gemini needs a trailing user message")
	}

	var history []*genai.Content
	for _, msg := range messages[:len(messages)-1] {
		content := strings.TrimSpace(msg.Content)
		if content == "" || msg.Role == ChatRoleSystem {
			continue
		}
		role := "user"
		if msg.Role == ChatRoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(content)},
		})
	}
	return history, last.Content, nil
}

func geminiResult(resp *genai.GenerateContentResponse, schema *OutputSchema) (LLMResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return LLMResponse{}, errors.New("conversation: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return LLMResponse{}, errors.New("conversation: gemini returned empty content")
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	result := LLMResponse{
		Text:       strings.TrimSpace(text.String()),
		StopReason: candidate.FinishReason.String(),
	}
	if schema != nil {
		payload := extractJSONObject(result.Text)
		if payload == "" || !json.Valid([]byte(payload)) {
			return LLMResponse{}, errors.New("conversation: gemini returned malformed structured output")
		}
		result.Structured = json.RawMessage(payload)
	}
	if meta := resp.UsageMetadata; meta != nil {
		result.Usage = TokenUsage{
			InputTokens:  meta.PromptTokenCount,
			OutputTokens: meta.CandidatesTokenCount,
			TotalTokens:  meta.TotalTokenCount,
		}
	}
	return result, nil
}

// Close releases resources held by the Gemini client.
func (c *GeminiLLMClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func toGenaiSchema(p *SchemaProperty) *genai.Schema {
	if p == nil {
		return nil
	}
	out := &genai.Schema{
		Description: p.Description,
		Nullable:    p.Nullable,
		Required:    p.Required,
	}
	switch p.Type {
	case SchemaTypeObject:
		out.Type = genai.TypeObject
	case SchemaTypeArray:
		out.Type = genai.TypeArray
	default:
		out.Type = genai.TypeString
	}
	if len(p.Enum) > 0 {
		out.Format = "enum"
		out.Enum = p.Enum
	}
	if p.Items != nil {
		out.Items = toGenaiSchema(p.Items)
	}
	if len(p.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(p.Properties))
		for name, prop := range p.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}

// extractJSONObject trims code fences and returns the outermost {...} span.
func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}
