package conversation

import (
	"context"

	"github.com/wolfman30/barber-agent/pkg/logging"
)

// FailoverLLMClient sends each request to a primary provider and, when that
// fails, once to a secondary provider.
type FailoverLLMClient struct {
	primary   LLMClient
	secondary LLMClient
	logger    *logging.Logger
}

// NewFailoverLLMClient wraps primary with an optional secondary provider.
func NewFailoverLLMClient(primary, secondary LLMClient, logger *logging.Logger) *FailoverLLMClient {
	if primary == nil {
		panic("conversation: primary llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FailoverLLMClient{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

func (c *FailoverLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if c.secondary == nil || ctx.Err() != nil {
		return LLMResponse{}, err
	}

	c.logger.Warn("primary llm failed, trying secondary", "error", err)
	resp, secondaryErr := c.secondary.Complete(ctx, req)
	if secondaryErr != nil {
		c.logger.Error("secondary llm also failed",
			"primary_error", err.Error(),
			"secondary_error", secondaryErr.Error(),
		)
		return LLMResponse{}, secondaryErr
	}
	return resp, nil
}
