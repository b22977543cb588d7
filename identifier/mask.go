package identifier

import "strings"

// Mask returns a log-safe rendering of an identifier.
//
//	john@example.com -> j***@example.com
//	13812345678      -> 138****5678
//	johnnie          -> jo***e
func Mask(raw string) string {
	id, err := Classify(raw)
	if err != nil {
		return "***"
	}

	switch id.Kind {
	case KindEmail:
		return MaskEmail(id.Value)
	case KindPhone:
		return MaskPhone(id.Value)
	default:
		return MaskUsername(id.Value)
	}
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// MaskPhone keeps the first three and last four digits.
func MaskPhone(phone string) string {
	if len(phone) < 8 {
		return "***"
	}
	return phone[:3] + "****" + phone[len(phone)-4:]
}

// MaskUsername keeps the first two characters and the last one.
func MaskUsername(username string) string {
	if len(username) <= 3 {
		return username[:1] + "***"
	}
	return username[:2] + "***" + username[len(username)-1:]
}
