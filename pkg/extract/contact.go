package extract

import "regexp"

// Contact holds customer identifiers found in a message.
type Contact struct {
	Email string
	Phone string
}

// IsEmpty reports whether no identifier was found.
func (c Contact) IsEmpty() bool {
	return c.Email == "" && c.Phone == ""
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`(?i)\b(?:mobile|phone|cell|contact)(?:\s+(?:no\.?|number))?\s*(?:is|:|-)?\s*(?:\+?91[\s-]?)?(\d{10})\b`)
)

// ExtractContact pulls an email address and a "mobile/phone <10 digits>" number out of
// message. It returns the message with both removed so their digits are not read as amounts.
func ExtractContact(message string) (Contact, string) {
	var c Contact

	if m := emailPattern.FindString(message); m != "" {
		c.Email = m
		message = emailPattern.ReplaceAllString(message, " ")
	}
	if m := phonePattern.FindStringSubmatch(message); m != nil {
		c.Phone = m[1]
		message = phonePattern.ReplaceAllString(message, " ")
	}
	return c, message
}
