package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/barber-agent/internal/directory"
)

// State is a step of the appointment flow.
type State string

const (
	StateAwaitingLocation        State = "awaiting_location"
	StateAwaitingBarberSelection State = "awaiting_barber_selection"
	StateAwaitingName            State = "awaiting_name"
	StateAwaitingService         State = "awaiting_service"
	StateAwaitingDate            State = "awaiting_date"
	StateAwaitingTime            State = "awaiting_time"
	StateAwaitingConfirmation    State = "awaiting_confirmation"
	StateCompleted               State = "completed"
)

// AllStates lists the flow in happy-path order.
var AllStates = []State{
	StateAwaitingLocation,
	StateAwaitingBarberSelection,
	StateAwaitingName,
	StateAwaitingService,
	StateAwaitingDate,
	StateAwaitingTime,
	StateAwaitingConfirmation,
	StateCompleted,
}

func (s State) Valid() bool {
	for _, known := range AllStates {
		if s == known {
			return true
		}
	}
	return false
}

// Intent is the classified purpose of a message.
type Intent string

const (
	IntentGreeting           Intent = "greeting"
	IntentAppointmentStart   Intent = "appointment_start"
	IntentProvideLocation    Intent = "provide_location"
	IntentSelectBarber       Intent = "select_barber"
	IntentProvideName        Intent = "provide_name"
	IntentProvideService     Intent = "provide_service"
	IntentProvideDate        Intent = "provide_date"
	IntentProvideTime        Intent = "provide_time"
	IntentConfirmAppointment Intent = "confirm_appointment"
	IntentCancelAppointment  Intent = "cancel_appointment"
	IntentUnknown            Intent = "unknown"

	// IntentError is only emitted by the HTTP layer when a request could not be served.
	IntentError Intent = "error"
)

// AllIntents lists the intents a classifier may return.
var AllIntents = []Intent{
	IntentGreeting,
	IntentAppointmentStart,
	IntentProvideLocation,
	IntentSelectBarber,
	IntentProvideName,
	IntentProvideService,
	IntentProvideDate,
	IntentProvideTime,
	IntentConfirmAppointment,
	IntentCancelAppointment,
	IntentUnknown,
}

func (i Intent) Valid() bool {
	for _, known := range AllIntents {
		if i == known {
			return true
		}
	}
	return false
}

// SessionKey identifies one conversation.
type SessionKey struct {
	TenantID   int64
	FromNumber string
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%d_%s", k.TenantID, k.FromNumber)
}

// Session is the per-conversation booking context.
type Session struct {
	State            State               `json:"state"`
	CustomerName     *string             `json:"customer_name"`
	Location         *string             `json:"location"`
	AvailableBarbers []directory.Listing `json:"available_barbers"`
	SelectedBarber   *string             `json:"selected_barber"`
	SelectedServices []string            `json:"selected_services"`
	Date             *string             `json:"date"`
	Time             *string             `json:"time"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// NewSession returns a session at the start of the flow.
func NewSession(now time.Time) *Session {
	return &Session{
		State:            StateAwaitingLocation,
		AvailableBarbers: []directory.Listing{},
		SelectedServices: []string{},
		UpdatedAt:        now,
	}
}

// AddService appends svc unless it is blank or already selected.
func (s *Session) AddService(svc string) bool {
	svc = strings.TrimSpace(svc)
	if svc == "" {
		return false
	}
	for _, existing := range s.SelectedServices {
		if existing == svc {
			return false
		}
	}
	s.SelectedServices = append(s.SelectedServices, svc)
	return true
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.CustomerName = cloneString(s.CustomerName)
	out.Location = cloneString(s.Location)
	out.SelectedBarber = cloneString(s.SelectedBarber)
	out.Date = cloneString(s.Date)
	out.Time = cloneString(s.Time)
	out.AvailableBarbers = append([]directory.Listing{}, s.AvailableBarbers...)
	out.SelectedServices = append([]string{}, s.SelectedServices...)
	return &out
}

// BarberOption is a directory listing surfaced to the user.
type BarberOption struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// ExtractedInfo holds the fields pulled out of a message.
type ExtractedInfo struct {
	CustomerName       *string        `json:"customer_name,omitempty"`
	LocationPreference *string        `json:"location_preference,omitempty"`
	BarberSelection    *string        `json:"barber_selection,omitempty"`
	ServicePreference  *string        `json:"service_preference,omitempty"`
	DatePreference     *string        `json:"date_preference,omitempty"`
	TimePreference     *string        `json:"time_preference,omitempty"`
	BarberOptions      []BarberOption `json:"barber_options,omitempty"`

	// barberOptionsSet distinguishes "lookup returned nothing" from "no lookup".
	barberOptionsSet bool
}

// SetBarberOptions records a directory result, including an empty one.
func (e *ExtractedInfo) SetBarberOptions(opts []BarberOption) {
	if opts == nil {
		opts = []BarberOption{}
	}
	e.BarberOptions = opts
	e.barberOptionsSet = true
}

// HasBarberOptions reports whether a directory lookup populated the options.
func (e *ExtractedInfo) HasBarberOptions() bool {
	return e != nil && e.barberOptionsSet
}

// MarshalJSON keeps an empty-but-set barber_options as [].
func (e ExtractedInfo) MarshalJSON() ([]byte, error) {
	type alias ExtractedInfo
	if !e.barberOptionsSet {
		return json.Marshal(alias(e))
	}
	return json.Marshal(struct {
		alias
		BarberOptions []BarberOption `json:"barber_options"`
	}{alias: alias(e), BarberOptions: e.BarberOptions})
}

// UnmarshalJSON marks barber_options as set when the key is present.
func (e *ExtractedInfo) UnmarshalJSON(data []byte) error {
	type alias ExtractedInfo
	var raw struct {
		alias
		BarberOptions *[]BarberOption `json:"barber_options"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = ExtractedInfo(raw.alias)
	if raw.BarberOptions != nil {
		e.SetBarberOptions(*raw.BarberOptions)
	}
	return nil
}

// Classification is the outcome of classifying one message.
type Classification struct {
	Intent        Intent
	Reply         string
	NextState     *State
	ExtractedInfo ExtractedInfo

	// services lists every service the rule-based path recognized in the message.
	services []string
	// ruleBased marks results of the deterministic fallback, which carry their own next state.
	ruleBased bool
}

// Request is one inbound message.
type Request struct {
	TenantID   int64  `json:"tenant_id"`
	FromNumber string `json:"from_number"`
	Message    string `json:"message"`
}

// Key returns the conversation the request belongs to.
func (r Request) Key() SessionKey {
	return SessionKey{TenantID: r.TenantID, FromNumber: r.FromNumber}
}

// Response is the reply bundle returned for a message.
type Response struct {
	OK            bool           `json:"ok"`
	Intent        Intent         `json:"intent"`
	Reply         string         `json:"reply"`
	NextState     *State         `json:"next_state"`
	ExtractedInfo *ExtractedInfo `json:"extracted_info"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func stringPtr(s string) *string {
	return &s
}

func statePtr(s State) *State {
	return &s
}
