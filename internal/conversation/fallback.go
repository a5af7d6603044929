package conversation

import (
	"fmt"
	"strings"
	"unicode"
)

var (
	greetingKeywords     = []string{"merhaba", "selam", "hello", "hi", "hey"}
	appointmentKeywords  = []string{"randevu", "appointment", "rezervasyon", "tarih"}
	nameBlockingKeywords = []string{"merhaba", "selam", "hello", "hi", "hey", "randevu", "appointment", "rezervasyon"}
	serviceDoneKeywords  = []string{"tamam", "yeterli", "devam"}
	dayKeywords          = []string{"bugün", "yarın", "pazartesi", "salı", "çarşamba", "perşembe", "cuma", "cumartesi", "pazar"}
	hourKeywords         = []string{"9", "10", "11", "14", "15", "16", "09", "10:00", "11:00", "14:00", "15:00", "16:00"}
	confirmKeywords      = []string{"evet", "e", "yes", "tamam", "onaylıyorum"}
	cancelKeywords       = []string{"hayır", "h", "no", "iptal", "vazgeç"}

	// serviceMenu is the numbered menu offered in awaiting_service.
	serviceMenu = []string{"Saç", "Sakal", "Saç Yıkama", "Fön"}
)

const (
	serviceMenuPrompt  = "(1) Saç, (2) Sakal, (3) Saç Yıkama, (4) Fön"
	availableHoursText = "Müsait saatler: 09:00, 10:00, 11:00, 14:00, 15:00, 16:00"
	locationExample    = "(Örn: İstanbul, Kadıköy)"
	notSpecifiedText   = "Belirtilmedi"

	replyGreeting         = "Merhaba! 👋 Randevu sistemimize hoş geldiniz. Hangi şehir ve ilçede kuaför arıyorsunuz? 🏠"
	replyAppointmentStart = "Harika! Randevu almak için önce adınızı öğrenebilir miyim? 😊"
	replyConfirmed        = "🎉 Randevunuz başarıyla oluşturuldu! Zamanında bekleriz. 😊"
	replyCancelled        = "Randevu iptal edildi. Yeni bir randevu almak için 'randevu' yazabilirsiniz. 😊"

	promptName     = "Lütfen adınızı söyleyin. 😊"
	promptService  = "Hangi hizmeti istiyorsunuz? " + serviceMenuPrompt
	promptLocation = "Hangi şehir ve ilçede hizmet almak istiyorsunuz? " + locationExample
	promptDate     = "Hangi tarih için randevu istiyorsunuz? Bugün, yarın veya başka bir tarih?"
	promptTime     = "Hangi saati istiyorsunuz? " + availableHoursText
	promptGeneric  = "Mesajınızı aldım. Randevu almak için 'randevu' yazabilir veya doğrudan adınızı söyleyebilirsiniz. 😊"
)

// Fallback classifies a message with fixed keyword and state rules. It does not
// touch the session; the first matching rule wins.
func Fallback(message string, session *Session) Classification {
	if session == nil {
		session = &Session{State: StateAwaitingLocation}
	}
	text := newMatchText(message)
	trimmed := strings.TrimSpace(message)
	state := session.State

	if text.hasAny(greetingKeywords) {
		return ruleResult(IntentGreeting, replyGreeting, StateAwaitingLocation)
	}
	if text.hasAny(appointmentKeywords) {
		return ruleResult(IntentAppointmentStart, replyAppointmentStart, StateAwaitingName)
	}

	if state == StateAwaitingName && looksLikeName(trimmed, text) {
		res := ruleResult(IntentProvideName,
			fmt.Sprintf("Teşekkürler! %s olarak kaydettim. 👋 Şimdi hangi hizmeti istiyorsunuz? %s", trimmed, serviceMenuPrompt),
			StateAwaitingService)
		res.ExtractedInfo.CustomerName = stringPtr(trimmed)
		return res
	}

	if state == StateAwaitingService {
		if res, ok := serviceRule(trimmed, text, session); ok {
			return res
		}
	}

	if state == StateAwaitingLocation {
		res := ruleResult(IntentProvideLocation,
			fmt.Sprintf("Teşekkürler! %s olarak kaydettim. 🏠 Şimdi hangi tarih için randevu istiyorsunuz? Bugün, yarın veya başka bir tarih? 📅", trimmed),
			StateAwaitingDate)
		res.ExtractedInfo.LocationPreference = stringPtr(trimmed)
		return res
	}

	if state == StateAwaitingDate && text.hasAny(dayKeywords) {
		res := ruleResult(IntentProvideDate,
			fmt.Sprintf("Harika! %s için randevu alıyoruz. 📅 Şimdi hangi saati istiyorsunuz? %s", trimmed, availableHoursText),
			StateAwaitingTime)
		res.ExtractedInfo.DatePreference = stringPtr(trimmed)
		return res
	}

	if state == StateAwaitingTime && containsAnySubstring(trimmed, hourKeywords) {
		res := ruleResult(IntentProvideTime, appointmentSummary(trimmed, session), StateAwaitingConfirmation)
		res.ExtractedInfo.TimePreference = stringPtr(trimmed)
		return res
	}

	if state == StateAwaitingConfirmation {
		if text.hasAny(confirmKeywords) {
			return ruleResult(IntentConfirmAppointment, replyConfirmed, StateCompleted)
		}
		if text.hasAny(cancelKeywords) {
			return ruleResult(IntentCancelAppointment, replyCancelled, StateAwaitingName)
		}
	}

	return ruleResult(IntentUnknown, statePrompt(state), state)
}

func serviceRule(trimmed string, text matchText, session *Session) (Classification, bool) {
	switch trimmed {
	case "1", "2", "3", "4":
		svc := serviceMenu[trimmed[0]-'1']
		return serviceSelected([]string{svc}), true
	}

	if text.hasAny(serviceDoneKeywords) {
		chosen := strings.Join(session.SelectedServices, ", ")
		return ruleResult(IntentProvideService,
			fmt.Sprintf("Harika! Seçilen hizmetler: %s 🎯 Şimdi hangi şehir ve ilçede hizmet almak istiyorsunuz? %s", chosen, locationExample),
			StateAwaitingLocation), true
	}

	var found []string
	add := func(svc string) {
		for _, f := range found {
			if f == svc {
				return
			}
		}
		found = append(found, svc)
	}
	if text.hasAny([]string{"saç"}) {
		if text.hasAny([]string{"yıkama"}) {
			add("Saç Yıkama")
		} else {
			add("Saç")
		}
	}
	if text.hasAny([]string{"sakal"}) {
		add("Sakal")
	}
	if text.hasAny([]string{"fön"}) {
		add("Fön")
	}
	if len(found) == 0 {
		return Classification{}, false
	}
	return serviceSelected(found), true
}

func serviceSelected(services []string) Classification {
	joined := strings.Join(services, ", ")
	res := ruleResult(IntentProvideService,
		fmt.Sprintf("✅ %s hizmeti seçildi! Başka hizmet eklemek istiyor musunuz? Yoksa devam etmek için 'tamam' yazın.", joined),
		StateAwaitingService)
	res.ExtractedInfo.ServicePreference = stringPtr(joined)
	res.services = services
	return res
}

func appointmentSummary(timeText string, session *Session) string {
	services := notSpecifiedText
	if len(session.SelectedServices) > 0 {
		services = strings.Join(session.SelectedServices, ", ")
	}
	return fmt.Sprintf("Mükemmel! Saat %s için randevu alıyoruz. ⏰ Randevu özeti:\n\n"+
		"📋 Hizmet: %s\n🏠 Konum: %s\n📅 Tarih: %s\n⏰ Saat: %s\n\n"+
		"Onaylamak için 'evet' yazın, iptal için 'hayır' yazın.",
		timeText, services,
		valueOr(session.Location, notSpecifiedText),
		valueOr(session.Date, notSpecifiedText),
		timeText)
}

// looksLikeName accepts up to three words with no numeric word and no keyword.
func looksLikeName(trimmed string, text matchText) bool {
	words := strings.Fields(trimmed)
	if len(words) == 0 || len(words) > 3 {
		return false
	}
	if text.hasAny(nameBlockingKeywords) {
		return false
	}
	for _, w := range words {
		if isNumeric(w) {
			return false
		}
	}
	return true
}

func statePrompt(state State) string {
	switch state {
	case StateAwaitingName:
		return promptName
	case StateAwaitingService:
		return promptService
	case StateAwaitingLocation:
		return promptLocation
	case StateAwaitingDate:
		return promptDate
	case StateAwaitingTime:
		return promptTime
	default:
		return promptGeneric
	}
}

func ruleResult(intent Intent, reply string, next State) Classification {
	return Classification{
		Intent:    intent,
		Reply:     reply,
		NextState: statePtr(next),
		ruleBased: true,
	}
}

// matchText holds a message lowered both the default way and the Turkish way,
// so "I" matches "hi" as well as "hayır".
type matchText struct {
	variants []string
	tokens   map[string]struct{}
}

func newMatchText(message string) matchText {
	trimmed := strings.TrimSpace(message)
	m := matchText{tokens: map[string]struct{}{}}
	for _, lowered := range []string{
		strings.ToLower(trimmed),
		strings.ToLowerSpecial(unicode.TurkishCase, trimmed),
	} {
		m.variants = append(m.variants, lowered)
		for _, tok := range strings.FieldsFunc(lowered, isWordSeparator) {
			m.tokens[tok] = struct{}{}
		}
	}
	return m
}

// hasAny matches one- and two-letter keywords as whole words and longer
// keywords as substrings, so inflected forms like "saçımı" still match "saç".
func (m matchText) hasAny(keywords []string) bool {
	for _, kw := range keywords {
		if len([]rune(kw)) <= 2 {
			if _, ok := m.tokens[kw]; ok {
				return true
			}
			continue
		}
		for _, v := range m.variants {
			if strings.Contains(v, kw) {
				return true
			}
		}
	}
	return false
}

func containsAnySubstring(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func isWordSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func isNumeric(word string) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
