package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/barber-agent/internal/directory"
	"github.com/wolfman30/barber-agent/internal/observability/metrics"
	"github.com/wolfman30/barber-agent/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	emptyMessageReply = "Mesajınızı anlayamadım."
	defaultReply      = "Mesajınızı aldım. Nasıl yardımcı olabilirim?"
)

// Directory resolves a city and optional district to barbershop listings.
type Directory interface {
	ListByLocation(ctx context.Context, city string, district *string) ([]directory.Listing, error)
}

// Engine runs the appointment state machine for inbound messages.
type Engine struct {
	classifier  Classifier
	directory   Directory
	store       SessionStore
	locks       *keyedMutex
	transcripts TranscriptRecorder
	metrics     *metrics.ConversationMetrics
	logger      *logging.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

type EngineOption func(*Engine)

func WithEngineLogger(logger *logging.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithEngineMetrics(m *metrics.ConversationMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTranscripts records every processed turn.
func WithTranscripts(r TranscriptRecorder) EngineOption {
	return func(e *Engine) {
		e.transcripts = r
	}
}

// WithClock overrides the time source used for session timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine wires the engine. A nil classifier means rule-based mode and a nil
// directory disables location enrichment.
func NewEngine(classifier Classifier, dir Directory, store SessionStore, opts ...EngineOption) *Engine {
	if store == nil {
		panic("conversation: session store cannot be nil")
	}
	if classifier == nil {
		classifier = DisabledClassifier{}
	}
	e := &Engine{
		classifier: classifier,
		directory:  dir,
		store:      store,
		locks:      newKeyedMutex(),
		logger:     logging.Default(),
		tracer:     otel.Tracer("barber.internal.conversation.engine"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessMessage handles one inbound message. It never fails: classifier and
// directory problems degrade to the rule-based path.
func (e *Engine) ProcessMessage(ctx context.Context, req Request) Response {
	ctx, span := e.tracer.Start(ctx, "conversation.process_message", trace.WithAttributes(
		attribute.Int64("barber.tenant_id", req.TenantID),
	))
	defer span.End()

	if strings.TrimSpace(req.Message) == "" {
		e.metrics.ObserveMessage(PathRejected, string(IntentUnknown))
		e.record(ctx, req, Response{Intent: IntentUnknown, Reply: emptyMessageReply}, PathRejected)
		return Response{OK: false, Intent: IntentUnknown, Reply: emptyMessageReply}
	}

	key := req.Key()
	unlock := e.locks.Lock(key)
	defer unlock()

	session := e.loadSession(ctx, key)
	before := session.Clone()

	var (
		result Classification
		path   = PathClassifier
	)
	if !e.classifier.Enabled() {
		path = PathFallback
		result = Fallback(req.Message, before)
	} else {
		var err error
		result, err = e.classifyAndEnrich(ctx, req.Message, before)
		if err != nil {
			reason := "classifier_error"
			if errors.Is(err, context.DeadlineExceeded) {
				reason = "timeout"
			}
			span.RecordError(err)
			e.metrics.ObserveFallbackRecovery(reason)
			e.logger.Warn("classifier failed, using rule-based reply",
				"tenant_id", req.TenantID,
				"state", before.State,
				"reason", reason,
				"error", err,
			)
			path = PathFallback
			result = Fallback(req.Message, before)
		}
	}

	applyClassification(session, result, req.Message, e.now())
	if err := e.store.Save(ctx, key, session); err != nil {
		e.logger.Error("failed to save session", "tenant_id", req.TenantID, "error", err)
	}

	reply := strings.TrimSpace(result.Reply)
	if reply == "" {
		reply = defaultReply
	}
	info := result.ExtractedInfo
	resp := Response{
		OK:            true,
		Intent:        result.Intent,
		Reply:         reply,
		NextState:     result.NextState,
		ExtractedInfo: &info,
	}

	span.SetAttributes(
		attribute.String("barber.path", path),
		attribute.String("barber.intent", string(resp.Intent)),
	)
	e.metrics.ObserveMessage(path, string(resp.Intent))
	e.logger.Debug("message processed",
		"tenant_id", req.TenantID,
		"path", path,
		"intent", resp.Intent,
		"state", session.State,
	)
	e.record(ctx, req, resp, path)
	return resp
}

// GetSession returns the stored session for key.
func (e *Engine) GetSession(ctx context.Context, key SessionKey) (*Session, error) {
	session, ok, err := e.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// ResetSession forgets the conversation; the next message starts over.
func (e *Engine) ResetSession(ctx context.Context, key SessionKey) error {
	unlock := e.locks.Lock(key)
	defer unlock()
	return e.store.Delete(ctx, key)
}

func (e *Engine) loadSession(ctx context.Context, key SessionKey) *Session {
	session, ok, err := e.store.Load(ctx, key)
	if err != nil {
		e.logger.Error("failed to load session, starting fresh", "tenant_id", key.TenantID, "error", err)
	}
	if err != nil || !ok || session == nil {
		return NewSession(e.now())
	}
	return session
}

// classifyAndEnrich runs the classifier and, when the message carries a
// location, the directory lookup and the listing reply. Panics are turned into
// errors so the caller can recover with the rule-based path.
func (e *Engine) classifyAndEnrich(ctx context.Context, message string, session *Session) (result Classification, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("conversation: classifier panic: %v", r)
		}
	}()

	result, err = e.classifier.Classify(ctx, ClassifyInput{Message: message, Session: session})
	if err != nil {
		return Classification{}, err
	}

	if result.Intent != IntentProvideLocation && session.State != StateAwaitingLocation {
		return result, nil
	}
	if e.directory == nil {
		return result, nil
	}
	candidate := locationCandidate(result.ExtractedInfo.LocationPreference, message)
	city, district := parseLocation(candidate)
	if city == "" {
		return result, nil
	}

	listings, err := e.directory.ListByLocation(ctx, city, district)
	if err != nil {
		e.logger.Warn("directory lookup failed, keeping first reply", "city", city, "error", err)
		return result, nil
	}

	options := make([]BarberOption, 0, len(listings))
	for _, l := range listings {
		options = append(options, BarberOption{ID: l.ID, Name: l.Name, Address: l.Address})
	}
	region := formatLocation(city, district)
	result.ExtractedInfo.SetBarberOptions(options)
	result.ExtractedInfo.LocationPreference = stringPtr(region)
	if len(options) > 0 {
		result.NextState = statePtr(StateAwaitingBarberSelection)
	} else {
		result.NextState = statePtr(StateAwaitingLocation)
	}

	phrased, err := e.classifier.PhraseListings(ctx, region, options)
	if err != nil {
		return Classification{}, err
	}
	if phrased != "" {
		result.Reply = phrased
	}
	return result, nil
}

func (e *Engine) record(ctx context.Context, req Request, resp Response, path string) {
	if e.transcripts == nil {
		return
	}
	turn := Turn{
		TenantID:   req.TenantID,
		FromNumber: req.FromNumber,
		Message:    req.Message,
		Intent:     resp.Intent,
		Reply:      resp.Reply,
		NextState:  resp.NextState,
		Path:       path,
		CreatedAt:  e.now().UTC(),
	}
	if err := e.transcripts.Record(ctx, turn); err != nil {
		e.logger.Warn("failed to record turn", "tenant_id", req.TenantID, "error", err)
	}
}
