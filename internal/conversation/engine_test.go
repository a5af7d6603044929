package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/barber-agent/internal/directory"
	"github.com/wolfman30/barber-agent/internal/observability/metrics"
	"github.com/wolfman30/barber-agent/pkg/logging"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type stubDirectory struct {
	mu           sync.Mutex
	listings     []directory.Listing
	err          error
	calls        int
	lastCity     string
	lastDistrict *string
}

func (s *stubDirectory) ListByLocation(ctx context.Context, city string, district *string) ([]directory.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastCity = city
	s.lastDistrict = district
	return s.listings, s.err
}

type stubRecorder struct {
	mu    sync.Mutex
	turns []Turn
	err   error
}

func (s *stubRecorder) Record(ctx context.Context, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	return s.err
}

func newTestEngine(classifier Classifier, dir Directory, store SessionStore, opts ...EngineOption) *Engine {
	opts = append([]EngineOption{
		WithEngineLogger(logging.New("error")),
		WithClock(func() time.Time { return testNow }),
	}, opts...)
	return NewEngine(classifier, dir, store, opts...)
}

func structured(t *testing.T, payload map[string]any) LLMResponse {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return LLMResponse{Structured: raw}
}

var testKey = SessionKey{TenantID: 1, FromNumber: "+905551112233"}

func request(message string) Request {
	return Request{TenantID: testKey.TenantID, FromNumber: testKey.FromNumber, Message: message}
}

func seed(t *testing.T, store SessionStore, session *Session) {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), testKey, session))
}

func load(t *testing.T, store SessionStore) *Session {
	t.Helper()
	s, ok, err := store.Load(context.Background(), testKey)
	require.NoError(t, err)
	require.True(t, ok)
	return s
}

func TestEngine_EmptyMessageIsRejectedWithoutTouchingSession(t *testing.T) {
	store := NewMemorySessionStore(time.Hour, 10)
	existing := sessionIn(StateAwaitingDate)
	existing.CustomerName = stringPtr("Ali")
	seed(t, store, existing)
	llm := &stubLLMClient{}
	engine := newTestEngine(NewLLMClassifier(llm, nil), nil, store)

	for _, msg := range []string{"", "   ", "\n\t"} {
		resp := engine.ProcessMessage(context.Background(), request(msg))
		assert.False(t, resp.OK)
		assert.Equal(t, IntentUnknown, resp.Intent)
		assert.Equal(t, "Mesajınızı anlayamadım.", resp.Reply)
	}
	assert.Equal(t, 0, llm.calls)
	assert.Equal(t, existing, load(t, store))

	// An empty message for an unknown key creates nothing.
	other := Request{TenantID: 9, FromNumber: "new", Message: " "}
	engine.ProcessMessage(context.Background(), other)
	_, ok, _ := store.Load(context.Background(), other.Key())
	assert.False(t, ok)
}

func TestEngine_DisabledClassifierUsesFallback(t *testing.T) {
	store := NewMemorySessionStore(time.Hour, 10)
	dir := &stubDirectory{}
	engine := newTestEngine(DisabledClassifier{}, dir, store)

	resp := engine.ProcessMessage(context.Background(), request("Merhaba"))
	require.True(t, resp.OK)
	assert.Equal(t, IntentGreeting, resp.Intent)
	require.NotNil(t, resp.NextState)
	assert.Equal(t, StateAwaitingLocation, *resp.NextState)
	assert.Equal(t, StateAwaitingLocation, load(t, store).State)

	// Fallback mode never consults the directory, even for a location.
	resp = engine.ProcessMessage(context.Background(), request("İstanbul Kadıköy"))
	assert.Equal(t, IntentProvideLocation, resp.Intent)
	assert.Equal(t, 0, dir.calls)
	assert.Equal(t, StateAwaitingDate, load(t, store).State)
}

func TestEngine_FallbackMenuChoiceAppendsService(t *testing.T) {
	store := NewMemorySessionStore(time.Hour, 10)
	seed(t, store, sessionIn(StateAwaitingService))
	engine := newTestEngine(nil, nil, store)

	resp := engine.ProcessMessage(context.Background(), request("2"))
	assert.Equal(t, IntentProvideService, resp.Intent)
	assert.Equal(t, StateAwaitingService, *resp.NextState)

	resp = engine.ProcessMessage(context.Background(), request("2"))
	assert.Equal(t, IntentProvideService, resp.Intent)

	s := load(t, store)
	assert.Equal(t, []string{"Sakal"}, s.SelectedServices)
	assert.Equal(t, StateAwaitingService, s.State)
}

func TestEngine_FallbackTimeSummary(t *testing.T) {
	store := NewMemorySessionStore(time.Hour, 10)
	s := sessionIn(StateAwaitingTime)
	s.AddService("Saç")
	s.Location = stringPtr("Ankara, Çankaya")
	s.Date = stringPtr("Cuma")
	seed(t, store, s)
	engine := newTestEngine(nil, nil, store)

	resp := engine.ProcessMessage(context.Background(), request("14:00"))
	assert.Equal(t, IntentProvideTime, resp.Intent)
	assert.Equal(t, StateAwaitingConfirmation, *resp.NextState)
	assert.Contains(t, resp.Reply, "📋 Hizmet: Saç")
	assert.Contains(t, resp.Reply, "🏠 Konum: Ankara, Çankaya")
	assert.Contains(t, resp.Reply, "📅 Tarih: Cuma")
	assert.Contains(t, resp.Reply, "⏰ Saat: 14:00")

	stored := load(t, store)
	require.NotNil(t, stored.Time)
	assert.Equal(t, "14:00", *stored.Time)
	assert.Equal(t, StateAwaitingConfirmation, stored.State)
}

func TestEngine_LocationEnrichmentWithListings(t *testing.T) {
	store := NewMemorySessionStore(time.Hour, 10)
	llm := &stubLLMClient{responses: []LLMResponse{
		structured(t, map[string]any{
			"intent":         "provide_location",
			"reply":          "first pass reply",
			"next_state":     "awaiting_barber_selection",
			"extracted_info": map[string]any{"location_preference": "İstanbul, Kadıköy"},
		}),
		{Text: "Kadıköy'de 2 kuaför bulduk: 1. Baran Kuaför 2. Usta Berber"},
	}}
	dir := &stubDirectory{listings: []directory.Listing{
		{ID: 7, Name: "Baran Kuaför", Address: "Moda"},
		{ID: 3, Name: "Usta Berber", Address: "Bahariye Cd. 5"},
	}}
	engine := newTestEngine(NewLLMClassifier(llm, nil), dir, store)

	resp := engine.ProcessMessage(context.Background(), request("Kadıköy'de kuaför arıyorum"))
	require.True(t, resp.OK)
	assert.Equal(t, IntentProvideLocation, resp.Intent)
	assert.Equal(t, StateAwaitingBarberSelection, *resp.NextState)
	assert.Equal(t, "Kadıköy'de 2 kuaför bulduk: 1. Baran Kuaför 2. Usta Berber", resp.Reply)
	require.NotNil(t, resp.ExtractedInfo)
	assert.Len(t, resp.ExtractedInfo.BarberOptions, 2)
	assert.Equal(t, "İstanbul, Kadıköy", *resp.ExtractedInfo.LocationPreference)

	assert.Equal(t, "İstanbul", dir.lastCity)
	require.NotNil(t, dir.lastDistrict)
	assert.Equal(t, "Kadıköy", *dir.lastDistrict)
	assert.Equal(t, 2, llm.calls)
	assert.Nil(t, llm.requests[1].Schema)

	s := load(t, store)
	assert.Equal(t, StateAwaitingBarberSelection, s.State)
	assert.Equal(t, "İstanbul, Kadıköy", *s.Location)
	assert.Len(t, s.AvailableBarbers, 2)
}

func TestEngine_LocationEnrichmentWithNoListings(t *testing.T) {
	store := NewMemorySessionStore(time.Hour, 10)
	llm := &stubLLMClient{responses: []LLMResponse{
		structured(t, map[string]any{
			"intent": "provide_location",
			"reply":  "first pass reply",
		}),
		{Text: "Bu bölgede aktif kuaför bulamadık, başka bir bölge dener misiniz?"},
	}}
	dir := &stubDirectory{listings: []directory.Listing{}}
	engine := newTestEngine(NewLLMClassifier(llm, nil), dir, store)

	resp := engine.ProcessMessage(context.Background(), request("Ankara Çankaya"))
	assert.Equal(t, StateAwaitingLocation, *resp.NextState)
	assert.Equal(t, "Bu bölgede aktif kuaför bulamadık, başka bir bölge dener misiniz?", resp.Reply)
	assert.True(t, resp.ExtractedInfo.HasBarberOptions())
	assert.Empty(t, resp.ExtractedInfo.BarberOptions)

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"barber_options":[]`)

	// Raw message was parsed on whitespace.
	assert.Equal(t, "Ankara", dir.lastCity)
	assert.Equal(t, "Çankaya", *dir.lastDistrict)
	assert.Equal(t, StateAwaitingLocation, load(t, store).State)
}

func TestEngine_EnrichmentTriggeredByStateAlone(t *testing.T) {
	store := NewMemorySessionStore(time.Hour, 10)
	llm := &stubLLMClient{responses: []LLMResponse{
		structured(t, map[string]any{"intent": "unknown", "reply": "hmm"}),
		{Text: "Bursa, Nilüfer için 1 kuaför bulduk."},
	}}
	dir := &stubDirectory{listings: []directory.Listing{{ID: 1, Name: "Nilüfer Berber"}}}
	engine := newTestEngine(NewLLMClassifier(llm, nil), dir, store)

	resp := engine.ProcessMessage(context.Background(), request("Bursa, Nilüfer"))
	assert.Equal(t, IntentUnknown, resp.Intent)
	assert.Equal(t, StateAwaitingBarberSelection, *resp.NextState)
	assert.Equal(t, 1, dir.calls)
	// unknown leaves the stored state alone
	assert.Equal(t, StateAwaitingLocation, load(t, store).State)
}

func TestEngine_SingleWordOutsideLocationIntentSkipsDirectory(t *testing.T) {
	store := NewMemorySessionStore(time.Hour, 10)
	llm := &stubLLMClient{response: structured(t, map[string]any{"intent": "greeting", "reply": "Merhaba!"})}
	dir := &stubDirectory{}
	engine := newTestEngine(NewLLMClassifier(llm, nil), dir, store)

	resp := engine.ProcessMessage(context.Background(), request("Merhaba"))
	assert.Equal(t, "Merhaba!", resp.Reply)
	assert.Equal(t, 0, dir.calls)
}

func TestEngine_DirectoryFailureKeepsFirstPassReply(t *testing.T) {
	store := NewMemorySessionStore(time.Hour, 10)
	llm := &stubLLMClient{response: structured(t, map[string]any{
		"intent":         "provide_location",
		"reply":          "first pass reply",
		"next_state":     "awaiting_barber_selection",
		"extracted_info": map[string]any{"location_preference": "İzmir, Bornova"},
	})}
	dir := &stubDirectory{err: errors.New("backend error: 502")}
	engine := newTestEngine(NewLLMClassifier(llm, nil), dir, store)

	resp := engine.ProcessMessage(context.Background(), request("İzmir Bornova"))
	require.True(t, resp.OK)
	assert.Equal(t, "first pass reply", resp.Reply)
	assert.False(t, resp.ExtractedInfo.HasBarberOptions())
	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, StateAwaitingBarberSelection, load(t, store).State)
}

func TestEngine_ClassifierFailureMatchesFallback(t *testing.T) {
	messages := []struct {
		state   State
		message string
	}{
		{StateAwaitingLocation, "Merhaba"},
		{StateAwaitingService, "2"},
		{StateAwaitingTime, "14:00"},
		{StateAwaitingConfirmation, "hayır"},
		{StateAwaitingDate, "belki"},
	}
	for _, tt := range messages {
		t.Run(fmt.Sprintf("%s/%s", tt.state, tt.message), func(t *testing.T) {
			store := NewMemorySessionStore(time.Hour, 10)
			start := sessionIn(tt.state)
			seed(t, store, start)
			llm := &stubLLMClient{err: errors.New("connection reset")}
			engine := newTestEngine(NewLLMClassifier(llm, nil), &stubDirectory{}, store)

			got := engine.ProcessMessage(context.Background(), request(tt.message))
			want := Fallback(tt.message, start)

			assert.True(t, got.OK)
			assert.Equal(t, want.Intent, got.Intent)
			assert.Equal(t, want.Reply, got.Reply)
			assert.Equal(t, *want.NextState, *got.NextState)
			assert.Equal(t, *want.NextState, load(t, store).State)
		})
	}
}

func TestEngine_MalformedOutputAndPhrasingFailureRecover(t *testing.T) {
	t.Run("malformed structured output", func(t *testing.T) {
		store := NewMemorySessionStore(time.Hour, 10)
		llm := &stubLLMClient{response: LLMResponse{Structured: json.RawMessage(`{"intent":`)}}
		engine := newTestEngine(NewLLMClassifier(llm, nil), nil, store)

		resp := engine.ProcessMessage(context.Background(), request("Merhaba"))
		assert.Equal(t, IntentGreeting, resp.Intent)
		assert.Equal(t, Fallback("Merhaba", sessionIn(StateAwaitingLocation)).Reply, resp.Reply)
	})

	t.Run("phrasing failure", func(t *testing.T) {
		store := NewMemorySessionStore(time.Hour, 10)
		llm := &stubLLMClient{
			responses: []LLMResponse{structured(t, map[string]any{
				"intent": "provide_location", "reply": "first",
				"extracted_info": map[string]any{"location_preference": "Ankara"},
			})},
			errs: []error{nil, errors.New("phrasing timeout")},
		}
		dir := &stubDirectory{listings: []directory.Listing{{ID: 1, Name: "A"}}}
		engine := newTestEngine(NewLLMClassifier(llm, nil), dir, store)

		resp := engine.ProcessMessage(context.Background(), request("Ankara"))
		want := Fallback("Ankara", sessionIn(StateAwaitingLocation))
		assert.Equal(t, want.Intent, resp.Intent)
		assert.Equal(t, want.Reply, resp.Reply)
		assert.Equal(t, StateAwaitingDate, load(t, store).State)
	})
}

func TestEngine_DefaultReplyWhenEmpty(t *testing.T) {
	store := NewMemorySessionStore(time.Hour, 10)
	llm := &stubLLMClient{response: structured(t, map[string]any{"intent": "select_barber", "reply": ""})}
	seed(t, store, sessionIn(StateAwaitingBarberSelection))
	engine := newTestEngine(NewLLMClassifier(llm, nil), nil, store)

	resp := engine.ProcessMessage(context.Background(), request("1"))
	assert.Equal(t, "Mesajınızı aldım. Nasıl yardımcı olabilirim?", resp.Reply)
	s := load(t, store)
	assert.Equal(t, StateAwaitingName, s.State)
	assert.Equal(t, "1", *s.SelectedBarber)
}

func TestEngine_ClassifierServicesStayUnique(t *testing.T) {
	store := NewMemorySessionStore(time.Hour, 10)
	llm := &stubLLMClient{response: structured(t, map[string]any{
		"intent":         "provide_service",
		"reply":          "Saç seçildi",
		"extracted_info": map[string]any{"service_preference": "Saç"},
	})}
	seed(t, store, sessionIn(StateAwaitingService))
	engine := newTestEngine(NewLLMClassifier(llm, nil), nil, store)

	for i := 0; i < 3; i++ {
		engine.ProcessMessage(context.Background(), request("saç"))
	}
	assert.Equal(t, []string{"Saç"}, load(t, store).SelectedServices)
}

func TestEngine_FallbackModeIsDeterministic(t *testing.T) {
	messages := []string{"Merhaba", "randevu", "Ali Can", "1", "tamam", "Ankara", "yarın", "15:00", "evet"}
	run := func() []Response {
		engine := newTestEngine(nil, nil, NewMemorySessionStore(time.Hour, 10))
		out := make([]Response, 0, len(messages))
		for _, m := range messages {
			out = append(out, engine.ProcessMessage(context.Background(), request(m)))
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		assert.Equal(t, a[i].Intent, b[i].Intent, messages[i])
		assert.Equal(t, *a[i].NextState, *b[i].NextState, messages[i])
		assert.True(t, a[i].NextState.Valid())
	}
	assert.Equal(t, IntentConfirmAppointment, a[len(a)-1].Intent)
	assert.Equal(t, StateCompleted, *a[len(a)-1].NextState)
}

func TestEngine_RecordsTurnsAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewConversationMetrics(reg)
	recorder := &stubRecorder{err: errors.New("db down")}
	llm := &stubLLMClient{err: errors.New("boom")}
	engine := newTestEngine(NewLLMClassifier(llm, nil), nil, NewMemorySessionStore(time.Hour, 10),
		WithEngineMetrics(m), WithTranscripts(recorder))

	engine.ProcessMessage(context.Background(), request("Merhaba"))
	engine.ProcessMessage(context.Background(), request(""))

	require.Len(t, recorder.turns, 2)
	assert.Equal(t, PathFallback, recorder.turns[0].Path)
	assert.Equal(t, IntentGreeting, recorder.turns[0].Intent)
	assert.Equal(t, testNow, recorder.turns[0].CreatedAt)
	assert.Equal(t, PathRejected, recorder.turns[1].Path)

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "barber_conversation_fallback_recoveries_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "barber_conversation_messages_total"))
}

func TestEngine_ResetAndGetSession(t *testing.T) {
	store := NewMemorySessionStore(time.Hour, 10)
	engine := newTestEngine(nil, nil, store)
	ctx := context.Background()

	_, err := engine.GetSession(ctx, testKey)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	engine.ProcessMessage(ctx, request("Merhaba"))
	s, err := engine.GetSession(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingLocation, s.State)
	assert.Equal(t, testNow, s.UpdatedAt)

	require.NoError(t, engine.ResetSession(ctx, testKey))
	_, err = engine.GetSession(ctx, testKey)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestEngine_ConcurrentMessagesForOneKey(t *testing.T) {
	store := NewMemorySessionStore(time.Hour, 10)
	seed(t, store, sessionIn(StateAwaitingService))
	engine := newTestEngine(nil, nil, store)

	var wg sync.WaitGroup
	for _, msg := range []string{"1", "2", "4", "1", "2", "4", "1", "2"} {
		wg.Add(1)
		go func(m string) {
			defer wg.Done()
			engine.ProcessMessage(context.Background(), request(m))
		}(msg)
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"Saç", "Sakal", "Fön"}, load(t, store).SelectedServices)
}
