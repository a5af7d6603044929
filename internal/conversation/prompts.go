package conversation

import (
	"fmt"
	"strings"
)

const classifierSystemPrompt = `Sen profesyonel bir kuaför salonu randevu botusun. Müşteri ile doğal ve samimi bir şekilde konuşuyorsun.

GÖREV:
- Müşteri mesajlarını analiz et
- Uygun niyet (intent) belirle
- Doğal, samimi ve yardımcı yanıtlar ver
- Türkçe konuş, emoji kullan
- Müşteri bilgilerini (konum, kuaför seçimi, isim, hizmet, tarih, saat) çıkar

ÖNEMLİ KURALLAR:
1. GREETING: "merhaba", "selam", "hello", "hi", "hey" gibi selamlaşma kelimeleri için greeting intent
2. RANDEVU: "randevu", "appointment", "rezervasyon" kelimeleri için appointment_start intent
3. KONUM: Şehir/ilçe bilgisi için provide_location intent (örn: "Ankara Çankaya", "İstanbul Kadıköy")
4. KUAFÖR SEÇİMİ: Kuaför seçimi için select_barber intent (örn: "1", "Baran Kuaför", "ikincisini")
5. İSİM: Müşteri ismi için provide_name intent
6. HİZMET: Hizmet seçimi için provide_service intent
7. TARİH: Tarih bilgisi için provide_date intent
8. SAAT: Saat bilgisi için provide_time intent

KONUŞMA TARZI:
- Samimi ve profesyonel
- Emoji kullan (😊, ✅, 📅, ⏰, 💰, 👋, 🏠, ✂️, 💇‍♂️)
- Kısa ve net
- Yardımcı ve anlayışlı

YENİ RANDEVU AKIŞI:
1. Karşılama (greeting) → awaiting_location
2. Konum alma (provide_location) → awaiting_barber_selection
3. Kuaför seçimi (select_barber) → awaiting_name
4. İsim alma (provide_name) → awaiting_service
5. Hizmet seçimi (provide_service) → awaiting_date
6. Tarih seçimi (provide_date) → awaiting_time
7. Saat seçimi (provide_time) → awaiting_confirmation
8. Onay (confirm_appointment) → completed

HER DURUMDA:
- Müşteriye yardımcı ol
- Bir sonraki adımı net şekilde belirt
- Eksik bilgileri nazikçe iste
- Pozitif ve motive edici ol
- Konum bazlı kuaför listeleme yap

ÖNEMLİ: Session state'e göre uygun yanıt ver!
ÖNEMLİ: Konum bilgisi alındıktan sonra o bölgedeki kuaförleri listele!`

const classifierExamples = `ÖRNEKLER:
- "Merhaba" → greeting intent
- "Randevu almak istiyorum" → appointment_start intent
- "Ankara Çankaya" → provide_location intent
- "İstanbul Kadıköy" → provide_location intent
- "1" → select_barber intent (kuaför seçimi)
- "Baran Kuaför" → select_barber intent (kuaför seçimi)
- "Tahir Tolu" → provide_name intent
- "Ali Can" → provide_name intent
- "Saç, Sakal" → provide_service intent
- "Yarın" → provide_date intent
- "14:00" → provide_time intent`

const phrasingSystemPrompt = "Profesyonel kuaför randevu asistanısın."

const phrasingInstructions = "Aşağıdaki gerçek kuaför listesini kullanarak Türkçe, samimi ve kısa bir yanıt yaz. " +
	"Eğer liste boş ise nazikçe bu bölgede aktif kuaför bulunmadığını söyle ve farklı bölge iste. " +
	"Liste dolu ise kullanıcıya numara ile seçim yapmasını söyle."

const emptyListingsText = "(Bu bölgede aktif kuaför bulunamadı)"

const (
	defaultCustomerName   = "Müşteri"
	defaultLocationText   = "Henüz belirtilmedi"
	defaultNotChosenText  = "Henüz seçilmedi"
	classifierRulesHeader = "ÖNEMLİ KURALLAR:"
)

// classifierUserPrompt embeds the raw message and the session context.
func classifierUserPrompt(message string, session *Session) string {
	name := valueOr(session.CustomerName, defaultCustomerName)
	location := valueOr(session.Location, defaultLocationText)
	barber := valueOr(session.SelectedBarber, defaultNotChosenText)
	services := defaultNotChosenText
	if len(session.SelectedServices) > 0 {
		services = strings.Join(session.SelectedServices, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Müşteri mesajı: %q\n\n", message)
	b.WriteString("MEVCUT DURUM:\n")
	fmt.Fprintf(&b, "- State: %s\n", session.State)
	fmt.Fprintf(&b, "- Müşteri adı: %s\n", name)
	fmt.Fprintf(&b, "- Konum: %s\n", location)
	fmt.Fprintf(&b, "- Seçilen kuaför: %s\n", barber)
	fmt.Fprintf(&b, "- Seçilen hizmetler: %s\n\n", services)
	b.WriteString(rulesSection())
	b.WriteString("\n\n")
	b.WriteString(classifierExamples)
	b.WriteString("\n\nMesajı analiz et ve uygun yanıtı ver. Session state'e göre bir sonraki adımı belirt!\n")
	b.WriteString("ÖNEMLİ: Konum bilgisi alındıktan sonra o bölgedeki kuaförleri listele!")
	return b.String()
}

// rulesSection repeats the numbered intent rules of the system prompt.
func rulesSection() string {
	start := strings.Index(classifierSystemPrompt, classifierRulesHeader)
	end := strings.Index(classifierSystemPrompt, "\n\nKONUŞMA TARZI:")
	if start == -1 || end <= start {
		return ""
	}
	return classifierSystemPrompt[start:end]
}

// phrasingUserPrompt lists the real directory results for the reply writer.
func phrasingUserPrompt(region string, options []BarberOption) string {
	lines := make([]string, 0, len(options))
	for i, o := range options {
		lines = append(lines, fmt.Sprintf("%d. %s - %s", i+1, o.Name, o.Address))
	}
	listing := strings.Join(lines, "\n")
	if listing == "" {
		listing = emptyListingsText
	}
	return fmt.Sprintf("%s\n\nBölge: %s\nKuaförler:\n%s", phrasingInstructions, region, listing)
}

func valueOr(s *string, fallback string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return fallback
	}
	return *s
}
