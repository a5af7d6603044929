package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/barber-agent/internal/observability/metrics"
	"github.com/wolfman30/barber-agent/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrClassifierDisabled is returned by the disabled classifier.
var ErrClassifierDisabled = errors.New("conversation: classifier disabled")

var classifierTracer = otel.Tracer("barber.internal.conversation.classifier")

const (
	classifyTemperature = 0.7
	classifyMaxTokens   = 500
	phraseTemperature   = 0.6
	phraseMaxTokens     = 250
	defaultCallTimeout  = 20 * time.Second
)

// ClassifyInput is what the classifier sees for one message.
type ClassifyInput struct {
	Message string
	Session *Session
}

// Classifier turns a message into an intent, reply and extracted fields, and
// writes the reply shown after a directory lookup.
type Classifier interface {
	Enabled() bool
	Classify(ctx context.Context, in ClassifyInput) (Classification, error)
	PhraseListings(ctx context.Context, region string, options []BarberOption) (string, error)
}

// DisabledClassifier is used when no classifier backend is configured; every
// message then goes through the rule-based fallback.
type DisabledClassifier struct{}

func (DisabledClassifier) Enabled() bool { return false }

func (DisabledClassifier) Classify(context.Context, ClassifyInput) (Classification, error) {
	return Classification{}, ErrClassifierDisabled
}

func (DisabledClassifier) PhraseListings(context.Context, string, []BarberOption) (string, error) {
	return "", ErrClassifierDisabled
}

// LLMClassifier classifies with an LLM constrained to the classification schema.
type LLMClassifier struct {
	client      LLMClient
	model       string
	temperature float32
	timeout     time.Duration
	metrics     *metrics.ConversationMetrics
	logger      *logging.Logger
}

type ClassifierOption func(*LLMClassifier)

// WithClassifierModel overrides the backend's default model.
func WithClassifierModel(model string) ClassifierOption {
	return func(c *LLMClassifier) {
		c.model = strings.TrimSpace(model)
	}
}

// WithClassifierTemperature sets the temperature of the classification call.
func WithClassifierTemperature(t float64) ClassifierOption {
	return func(c *LLMClassifier) {
		if t >= 0 {
			c.temperature = float32(t)
		}
	}
}

// WithClassifierTimeout bounds each classifier call.
func WithClassifierTimeout(d time.Duration) ClassifierOption {
	return func(c *LLMClassifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithClassifierMetrics(m *metrics.ConversationMetrics) ClassifierOption {
	return func(c *LLMClassifier) {
		c.metrics = m
	}
}

// NewLLMClassifier returns a live classifier backed by client.
func NewLLMClassifier(client LLMClient, logger *logging.Logger, opts ...ClassifierOption) *LLMClassifier {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &LLMClassifier{
		client:      client,
		temperature: classifyTemperature,
		timeout:     defaultCallTimeout,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LLMClassifier) Enabled() bool { return true }

func (c *LLMClassifier) Classify(ctx context.Context, in ClassifyInput) (Classification, error) {
	if in.Session == nil {
		return Classification{}, errors.New("conversation: classify requires a session")
	}
	resp, err := c.complete(ctx, "classify", LLMRequest{
		Model:       c.model,
		System:      []string{classifierSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: classifierUserPrompt(in.Message, in.Session)}},
		MaxTokens:   classifyMaxTokens,
		Temperature: c.temperature,
		Schema:      classificationSchema(),
	})
	if err != nil {
		return Classification{}, err
	}

	if len(resp.Structured) == 0 {
		return Classification{Intent: IntentUnknown, Reply: resp.Text}, nil
	}
	return decodeClassification(resp.Structured)
}

func (c *LLMClassifier) PhraseListings(ctx context.Context, region string, options []BarberOption) (string, error) {
	resp, err := c.complete(ctx, "phrase", LLMRequest{
		Model:       c.model,
		System:      []string{phrasingSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: phrasingUserPrompt(region, options)}},
		MaxTokens:   phraseMaxTokens,
		Temperature: phraseTemperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

func (c *LLMClassifier) complete(ctx context.Context, call string, req LLMRequest) (LLMResponse, error) {
	ctx, span := classifierTracer.Start(ctx, "conversation.classifier."+call)
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Complete(callCtx, req)
	latency := time.Since(start)
	c.metrics.ObserveClassifierCall(call, err != nil, latency.Seconds())
	span.SetAttributes(
		attribute.Float64("barber.llm.latency_ms", float64(latency.Milliseconds())),
		attribute.Int("barber.llm.input_tokens", int(resp.Usage.InputTokens)),
		attribute.Int("barber.llm.output_tokens", int(resp.Usage.OutputTokens)),
		attribute.String("barber.llm.stop_reason", resp.StopReason),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("classifier call failed", "call", call, "latency_ms", latency.Milliseconds(), "error", err)
		return LLMResponse{}, fmt.Errorf("conversation: %s call failed: %w", call, err)
	}
	c.logger.Debug("classifier call finished",
		"call", call,
		"latency_ms", latency.Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason,
	)
	return resp, nil
}

type classificationPayload struct {
	Intent        string  `json:"intent"`
	Reply         string  `json:"reply"`
	NextState     *string `json:"next_state"`
	ExtractedInfo *struct {
		CustomerName       *string `json:"customer_name"`
		LocationPreference *string `json:"location_preference"`
		BarberSelection    *string `json:"barber_selection"`
		ServicePreference  *string `json:"service_preference"`
		DatePreference     *string `json:"date_preference"`
		TimePreference     *string `json:"time_preference"`
	} `json:"extracted_info"`
}

// decodeClassification maps structured output onto a Classification. Values
// outside the known enums become unknown / no next state, blank fields are dropped.
func decodeClassification(raw json.RawMessage) (Classification, error) {
	var payload classificationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Classification{}, fmt.Errorf("conversation: decode classification: %w", err)
	}

	out := Classification{
		Intent: Intent(strings.TrimSpace(payload.Intent)),
		Reply:  strings.TrimSpace(payload.Reply),
	}
	if !out.Intent.Valid() {
		out.Intent = IntentUnknown
	}
	if payload.NextState != nil {
		if st := State(strings.TrimSpace(*payload.NextState)); st.Valid() {
			out.NextState = &st
		}
	}
	if info := payload.ExtractedInfo; info != nil {
		out.ExtractedInfo = ExtractedInfo{
			CustomerName:       nonBlank(info.CustomerName),
			LocationPreference: nonBlank(info.LocationPreference),
			BarberSelection:    nonBlank(info.BarberSelection),
			ServicePreference:  nonBlank(info.ServicePreference),
			DatePreference:     nonBlank(info.DatePreference),
			TimePreference:     nonBlank(info.TimePreference),
		}
	}
	return out, nil
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
