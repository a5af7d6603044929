package conversation

import (
	"testing"
	"time"
)

func TestApplyClassification_IntentTable(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		start     State
		intent    Intent
		info      ExtractedInfo
		message   string
		wantState State
		check     func(t *testing.T, s *Session)
	}{
		{
			name: "location from extracted field", start: StateAwaitingLocation, intent: IntentProvideLocation,
			info: ExtractedInfo{LocationPreference: stringPtr("İstanbul, Kadıköy")}, message: "kadıköy olsun",
			wantState: StateAwaitingBarberSelection,
			check: func(t *testing.T, s *Session) {
				if s.Location == nil || *s.Location != "İstanbul, Kadıköy" {
					t.Fatalf("location = %v", s.Location)
				}
			},
		},
		{
			name: "barber from raw message", start: StateAwaitingBarberSelection, intent: IntentSelectBarber,
			message: "  Baran Kuaför ", wantState: StateAwaitingName,
			check: func(t *testing.T, s *Session) {
				if s.SelectedBarber == nil || *s.SelectedBarber != "Baran Kuaför" {
					t.Fatalf("barber = %v", s.SelectedBarber)
				}
			},
		},
		{
			name: "name", start: StateAwaitingName, intent: IntentProvideName,
			info: ExtractedInfo{CustomerName: stringPtr("Tahir Tolu")}, message: "ben Tahir Tolu",
			wantState: StateAwaitingService,
			check: func(t *testing.T, s *Session) {
				if s.CustomerName == nil || *s.CustomerName != "Tahir Tolu" {
					t.Fatalf("name = %v", s.CustomerName)
				}
			},
		},
		{
			name: "service", start: StateAwaitingService, intent: IntentProvideService,
			info: ExtractedInfo{ServicePreference: stringPtr("Sakal")}, message: "sakal",
			wantState: StateAwaitingDate,
			check: func(t *testing.T, s *Session) {
				if len(s.SelectedServices) != 1 || s.SelectedServices[0] != "Sakal" {
					t.Fatalf("services = %v", s.SelectedServices)
				}
			},
		},
		{
			name: "date", start: StateAwaitingDate, intent: IntentProvideDate, message: "Yarın",
			wantState: StateAwaitingTime,
			check: func(t *testing.T, s *Session) {
				if s.Date == nil || *s.Date != "Yarın" {
					t.Fatalf("date = %v", s.Date)
				}
			},
		},
		{
			name: "time", start: StateAwaitingTime, intent: IntentProvideTime,
			info: ExtractedInfo{TimePreference: stringPtr("14:00")}, message: "saat 2",
			wantState: StateAwaitingConfirmation,
			check: func(t *testing.T, s *Session) {
				if s.Time == nil || *s.Time != "14:00" {
					t.Fatalf("time = %v", s.Time)
				}
			},
		},
		{name: "confirm", start: StateAwaitingConfirmation, intent: IntentConfirmAppointment, message: "evet", wantState: StateCompleted},
		{name: "greeting resets to location", start: StateAwaitingTime, intent: IntentGreeting, message: "selam", wantState: StateAwaitingLocation},
		{name: "appointment start", start: StateCompleted, intent: IntentAppointmentStart, message: "randevu", wantState: StateAwaitingLocation},
		{name: "cancel is a no-op", start: StateAwaitingConfirmation, intent: IntentCancelAppointment, message: "hayır", wantState: StateAwaitingConfirmation},
		{name: "unknown is a no-op", start: StateAwaitingDate, intent: IntentUnknown, message: "hmm", wantState: StateAwaitingDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sessionIn(tt.start)
			applyClassification(s, Classification{Intent: tt.intent, ExtractedInfo: tt.info}, tt.message, now)
			if s.State != tt.wantState {
				t.Fatalf("state = %q, want %q", s.State, tt.wantState)
			}
			if !s.UpdatedAt.Equal(now) {
				t.Fatalf("updated_at = %v, want %v", s.UpdatedAt, now)
			}
			if tt.check != nil {
				tt.check(t, s)
			}
		})
	}
}

func TestApplyClassification_ServicesStayUnique(t *testing.T) {
	s := sessionIn(StateAwaitingService)
	for i := 0; i < 3; i++ {
		applyClassification(s, Classification{
			Intent:        IntentProvideService,
			ExtractedInfo: ExtractedInfo{ServicePreference: stringPtr("Saç")},
		}, "saç", time.Now())
		applyClassification(s, Fallback("1", sessionIn(StateAwaitingService)), "1", time.Now())
	}
	if len(s.SelectedServices) != 1 || s.SelectedServices[0] != "Saç" {
		t.Fatalf("services = %v, want [Saç]", s.SelectedServices)
	}
}

func TestApplyClassification_EmptyDirectoryKeepsAskingForLocation(t *testing.T) {
	s := sessionIn(StateAwaitingLocation)
	c := Classification{Intent: IntentProvideLocation, ExtractedInfo: ExtractedInfo{LocationPreference: stringPtr("Bursa")}}
	c.ExtractedInfo.SetBarberOptions(nil)

	applyClassification(s, c, "Bursa", time.Now())
	if s.State != StateAwaitingLocation {
		t.Fatalf("state = %q, want awaiting_location", s.State)
	}
	if s.AvailableBarbers == nil || len(s.AvailableBarbers) != 0 {
		t.Fatalf("available barbers = %v, want empty", s.AvailableBarbers)
	}
}

func TestApplyClassification_RuleResultUsesItsNextState(t *testing.T) {
	s := sessionIn(StateAwaitingLocation)
	applyClassification(s, Fallback("Ankara Çankaya", s), "Ankara Çankaya", time.Now())
	if s.State != StateAwaitingDate {
		t.Fatalf("state = %q, want awaiting_date", s.State)
	}
	if s.Location == nil || *s.Location != "Ankara Çankaya" {
		t.Fatalf("location = %v", s.Location)
	}

	unknown := Fallback("hmm ne diyeceğimi bilemedim", s)
	applyClassification(s, unknown, "hmm", time.Now())
	if s.State != StateAwaitingDate {
		t.Fatalf("unknown must keep state, got %q", s.State)
	}
}
