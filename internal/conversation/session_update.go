package conversation

import (
	"strings"
	"time"

	"github.com/wolfman30/barber-agent/internal/directory"
)

// applyClassification mutates session for one processed message. Rule-based
// results carry their own next state; classifier results follow the intent table.
func applyClassification(session *Session, c Classification, message string, now time.Time) {
	if c.ruleBased {
		applyRuleResult(session, c)
	} else {
		applyIntent(session, c, message)
	}
	if c.ExtractedInfo.HasBarberOptions() {
		session.AvailableBarbers = listingsFromOptions(c.ExtractedInfo.BarberOptions)
	}
	session.UpdatedAt = now
}

func applyIntent(session *Session, c Classification, message string) {
	info := c.ExtractedInfo
	value := func(field *string) *string {
		if field != nil {
			return cloneString(field)
		}
		return stringPtr(strings.TrimSpace(message))
	}

	switch c.Intent {
	case IntentProvideLocation:
		session.Location = value(info.LocationPreference)
		session.State = StateAwaitingBarberSelection
		// An empty directory result keeps asking for a location.
		if info.HasBarberOptions() && len(info.BarberOptions) == 0 {
			session.State = StateAwaitingLocation
		}
	case IntentSelectBarber:
		session.SelectedBarber = value(info.BarberSelection)
		session.State = StateAwaitingName
	case IntentProvideName:
		session.CustomerName = value(info.CustomerName)
		session.State = StateAwaitingService
	case IntentProvideService:
		session.AddService(*value(info.ServicePreference))
		session.State = StateAwaitingDate
	case IntentProvideDate:
		session.Date = value(info.DatePreference)
		session.State = StateAwaitingTime
	case IntentProvideTime:
		session.Time = value(info.TimePreference)
		session.State = StateAwaitingConfirmation
	case IntentConfirmAppointment:
		session.State = StateCompleted
	case IntentGreeting, IntentAppointmentStart:
		session.State = StateAwaitingLocation
	}
}

func listingsFromOptions(opts []BarberOption) []directory.Listing {
	out := make([]directory.Listing, 0, len(opts))
	for _, o := range opts {
		out = append(out, directory.Listing{ID: o.ID, Name: o.Name, Address: o.Address})
	}
	return out
}

func applyRuleResult(session *Session, c Classification) {
	info := c.ExtractedInfo
	if info.CustomerName != nil {
		session.CustomerName = cloneString(info.CustomerName)
	}
	if info.LocationPreference != nil {
		session.Location = cloneString(info.LocationPreference)
	}
	if info.DatePreference != nil {
		session.Date = cloneString(info.DatePreference)
	}
	if info.TimePreference != nil {
		session.Time = cloneString(info.TimePreference)
	}
	for _, svc := range c.services {
		session.AddService(svc)
	}
	if c.NextState != nil {
		session.State = *c.NextState
	}
}
