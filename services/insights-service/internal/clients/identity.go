package clients

import (
	"strings"

	"github.com/appointly/insights/services/insights-service/internal/model"
)

// blockedNameSentinel marks calendar blocks that staff create to reserve time;
// they carry no real client identity.
const blockedNameSentinel = "blocked"

// internalEmailMarker tags appointments created by internal tooling.
const internalEmailMarker = "@internal"

// minDuplicatePhoneDigits guards against extension-like fragments producing
// false duplicate matches.
const minDuplicatePhoneDigits = 7

// NormalizePhone strips every non-digit character from a raw phone string, so
// "555-123-4567" and "(555) 123-4567" compare equal.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

// CanonicalPhone is the duplicate-detection form of a phone number: the last
// ten digits, so national and country-code formats of one line compare equal.
// Fragments shorter than minDuplicatePhoneDigits canonicalize to "" and are
// never counted.
func CanonicalPhone(raw string) string {
	digits := NormalizePhone(raw)
	if len(digits) < minDuplicatePhoneDigits {
		return ""
	}
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return digits
}

// Eligible reports whether an appointment should fold into a client profile.
// Cancelled and no-show appointments never do, nor do internal placeholders.
func Eligible(a model.Appointment) bool {
	if a.Status == model.StatusCancelled || a.Status == model.StatusNoShow {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(a.ClientName), blockedNameSentinel) {
		return false
	}
	if strings.Contains(strings.ToLower(a.ClientEmail), internalEmailMarker) {
		return false
	}
	return true
}

// IdentityKey resolves the merge key for an appointment. Phone wins over email
// because clients change email addresses between visits far more often than
// phone numbers; the synthetic fallback prevents two walk-ins who share only a
// display name from collapsing into one profile.
func IdentityKey(a model.Appointment) string {
	if phone := NormalizePhone(a.ClientPhone); phone != "" {
		return "phone:" + phone
	}
	if email := strings.ToLower(strings.TrimSpace(a.ClientEmail)); email != "" {
		return "email:" + email
	}
	return "appt:" + a.ID
}
