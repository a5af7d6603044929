package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/barber-agent/internal/config"
	"github.com/wolfman30/barber-agent/internal/conversation"
	"github.com/wolfman30/barber-agent/internal/directory"
	"github.com/wolfman30/barber-agent/internal/observability/metrics"
	"github.com/wolfman30/barber-agent/pkg/logging"
)

// AWSConfigLoader resolves AWS SDK configuration for the Bedrock backend.
type AWSConfigLoader func(ctx context.Context, cfg *appconfig.Config) (aws.Config, error)

// ConversationDeps carries the optional infrastructure the engine can use.
type ConversationDeps struct {
	Metrics *metrics.ConversationMetrics
	Redis   *redis.Client
	Pool    conversation.PgxPool
	LoadAWS AWSConfigLoader
}

// Conversation is the wired engine plus everything the HTTP layer needs.
type Conversation struct {
	Engine    *conversation.Engine
	Handler   *conversation.Handler
	Directory *directory.Client

	closers []io.Closer
}

// Close releases LLM clients opened during the build.
func (c *Conversation) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildConversation wires the directory client, classifier, session store and
// transcript log into an engine and its HTTP handler.
func BuildConversation(ctx context.Context, cfg *appconfig.Config, deps ConversationDeps, logger *logging.Logger) (*Conversation, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := BuildSessionStore(cfg, deps.Redis, logger)
	if err != nil {
		return nil, err
	}

	classifier, closers, err := BuildClassifier(ctx, cfg, deps, logger)
	if err != nil {
		return nil, err
	}
	out := &Conversation{closers: closers}

	opts := []conversation.EngineOption{
		conversation.WithEngineLogger(logger),
		conversation.WithEngineMetrics(deps.Metrics),
	}

	var dir conversation.Directory
	var locations conversation.LocationLister
	if base := strings.TrimSpace(cfg.BackendURL); base != "" {
		out.Directory = directory.NewClient(base, logger,
			directory.WithTimeout(cfg.DirectoryTimeout),
			directory.WithMetrics(deps.Metrics),
		)
		dir = out.Directory
		locations = out.Directory
	} else {
		logger.Warn("BACKEND_URL not set; location enrichment disabled")
	}

	var transcripts conversation.TranscriptReader
	if ts := BuildTranscriptStore(deps.Pool); ts != nil {
		opts = append(opts, conversation.WithTranscripts(ts))
		transcripts = ts
		logger.Info("conversation transcripts enabled")
	}

	out.Engine = conversation.NewEngine(classifier, dir, store, opts...)
	out.Handler = conversation.NewHandler(out.Engine, locations, transcripts, logger)
	return out, nil
}

// BuildClassifier selects the LLM backend named by CLASSIFIER_PROVIDER. A
// provider without credentials degrades to the rule-based fallback instead of
// failing startup.
func BuildClassifier(ctx context.Context, cfg *appconfig.Config, deps ConversationDeps, logger *logging.Logger) (conversation.Classifier, []io.Closer, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	provider := cfg.ClassifierProvider
	if provider == "" {
		provider = appconfig.ClassifierAuto
	}
	if provider == appconfig.ClassifierNone {
		logger.Info("classifier disabled; using rule-based fallback only")
		return conversation.DisabledClassifier{}, nil, nil
	}

	var (
		clients []conversation.LLMClient
		closers []io.Closer
		model   string
	)

	useGemini := provider == appconfig.ClassifierGemini || provider == appconfig.ClassifierAuto
	useBedrock := provider == appconfig.ClassifierBedrock || provider == appconfig.ClassifierAuto
	if !useGemini && !useBedrock {
		return nil, nil, fmt.Errorf("bootstrap: unknown classifier provider %q", provider)
	}

	if useGemini && strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		clients = append(clients, gemini)
		closers = append(closers, gemini)
		model = cfg.GeminiModel
	}

	if useBedrock && strings.TrimSpace(cfg.BedrockModelID) != "" {
		loadAWS := deps.LoadAWS
		if loadAWS == nil {
			loadAWS = defaultAWSConfig
		}
		awsCfg, err := loadAWS(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		clients = append(clients, conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID))
		if model == "" {
			model = cfg.BedrockModelID
		}
	}

	var client conversation.LLMClient
	switch len(clients) {
	case 0:
		logger.Warn("no classifier credentials configured; using rule-based fallback only", "provider", provider)
		return conversation.DisabledClassifier{}, nil, nil
	case 1:
		client = clients[0]
	default:
		client = conversation.NewFailoverLLMClient(clients[0], clients[1], logger)
	}

	opts := []conversation.ClassifierOption{
		conversation.WithClassifierTemperature(cfg.ClassifierTemperature),
		conversation.WithClassifierTimeout(cfg.ClassifierTimeout),
		conversation.WithClassifierMetrics(deps.Metrics),
	}
	if len(clients) == 1 {
		opts = append(opts, conversation.WithClassifierModel(model))
	}

	logger.Info("using LLM classifier", "provider", provider, "backends", len(clients), "model", model)
	return conversation.NewLLMClassifier(client, logger, opts...), closers, nil
}

func defaultAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
}
