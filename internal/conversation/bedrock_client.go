package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockLLMClient implements LLMClient on the Bedrock Converse API. Structured
// output is obtained by forcing a single tool call whose input schema is the
// requested schema.
type BedrockLLMClient struct {
	api     bedrockConverseAPI
	modelID string
}

func NewBedrockLLMClient(api bedrockConverseAPI, modelID string) *BedrockLLMClient {
	if api == nil {
		panic("conversation: bedrock converse client cannot be nil")
	}
	return &BedrockLLMClient{api: api, modelID: modelID}
}

func (c *BedrockLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	modelID := req.Model
	if strings.TrimSpace(modelID) == "" {
		modelID = c.modelID
	}
	if strings.TrimSpace(modelID) == "" {
		return LLMResponse{}, errors.New("conversation: bedrock model id is required")
	}

	systemBlocks := make([]brtypes.SystemContentBlock, 0, len(req.System))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: block})
	}

	messages := make([]brtypes.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}

		switch msg.Role {
		case ChatRoleSystem:
			systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: content})
		case ChatRoleUser:
			messages = append(messages, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: content}},
			})
		case ChatRoleAssistant:
			messages = append(messages, brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: content}},
			})
		default:
			return LLMResponse{}, fmt.Errorf("conversation: unsupported role %q", msg.Role)
		}
	}

	inference := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(req.MaxTokens)
	}
	// Allow callers to omit temperature by passing a negative value.
	if req.Temperature >= 0 {
		inference.Temperature = aws.Float32(req.Temperature)
	}
	if req.TopP != 0 {
		inference.TopP = aws.Float32(req.TopP)
	}
	if inference.MaxTokens == nil && inference.Temperature == nil && inference.TopP == nil {
		inference = nil
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(modelID),
		System:          systemBlocks,
		Messages:        messages,
		InferenceConfig: inference,
	}
	if req.Schema != nil && req.Schema.Root != nil {
		input.ToolConfig = bedrockToolConfig(req.Schema)
	}

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return LLMResponse{}, err
	}

	resp, err := bedrockExtractOutput(out, req.Schema)
	if err != nil {
		return LLMResponse{}, err
	}
	if out.StopReason != "" {
		resp.StopReason = string(out.StopReason)
	}
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int32OrZero(out.Usage.InputTokens),
			OutputTokens: int32OrZero(out.Usage.OutputTokens),
			TotalTokens:  int32OrZero(out.Usage.TotalTokens),
		}
	}
	return resp, nil
}

func bedrockToolConfig(schema *OutputSchema) *brtypes.ToolConfiguration {
	return &brtypes.ToolConfiguration{
		Tools: []brtypes.Tool{
			&brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
				Name:        aws.String(schema.Name),
				Description: aws.String(schema.Description),
				InputSchema: &brtypes.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(schema.Root.JSONSchema()),
				},
			}},
		},
		ToolChoice: &brtypes.ToolChoiceMemberTool{Value: brtypes.SpecificToolChoice{
			Name: aws.String(schema.Name),
		}},
	}
}

// bedrockExtractOutput collects text blocks and, when a schema was requested,
// the input of the matching tool call.
func bedrockExtractOutput(out *bedrockruntime.ConverseOutput, schema *OutputSchema) (LLMResponse, error) {
	if out == nil {
		return LLMResponse{}, errors.New("conversation: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return LLMResponse{}, errors.New("conversation: bedrock response did not include a message output")
	}
	if len(msgOut.Value.Content) == 0 {
		return LLMResponse{}, errors.New("conversation: bedrock response message was empty")
	}

	var resp LLMResponse
	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			builder.WriteString(b.Value)
		case *brtypes.ContentBlockMemberToolUse:
			if schema == nil || aws.ToString(b.Value.Name) != schema.Name || b.Value.Input == nil {
				continue
			}
			var decoded map[string]any
			if err := b.Value.Input.UnmarshalSmithyDocument(&decoded); err != nil {
				return LLMResponse{}, fmt.Errorf("conversation: bedrock tool input decode: %w", err)
			}
			raw, err := json.Marshal(decoded)
			if err != nil {
				return LLMResponse{}, fmt.Errorf("conversation: bedrock tool input encode: %w", err)
			}
			resp.Structured = raw
		}
	}
	resp.Text = strings.TrimSpace(builder.String())
	if resp.Text == "" && len(resp.Structured) == 0 {
		return LLMResponse{}, errors.New("conversation: bedrock response contained no usable content blocks")
	}
	return resp, nil
}

func int32OrZero(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}
