package conversation

import "strings"

// parseLocation splits free text into city and optional district. A comma
// separates them when present; otherwise the first word is the city.
func parseLocation(text string) (city string, district *string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if idx := strings.Index(text, ","); idx >= 0 {
		city = strings.TrimSpace(text[:idx])
		if d := strings.TrimSpace(text[idx+1:]); d != "" {
			district = &d
		}
		return city, district
	}
	fields := strings.Fields(text)
	city = fields[0]
	if len(fields) > 1 {
		d := strings.Join(fields[1:], " ")
		district = &d
	}
	return city, district
}

// locationCandidate picks the text to look up: the extracted preference, or the
// raw message when it looks like more than one word.
func locationCandidate(extracted *string, message string) string {
	if extracted != nil && strings.TrimSpace(*extracted) != "" {
		return strings.TrimSpace(*extracted)
	}
	if strings.ContainsAny(message, ", \t") {
		return strings.TrimSpace(message)
	}
	return ""
}

func formatLocation(city string, district *string) string {
	if district == nil || *district == "" {
		return city
	}
	return city + ", " + *district
}
