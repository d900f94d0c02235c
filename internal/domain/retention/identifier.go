package retention

import "strings"

// SanitizeIdentifier strips every character that is not an ASCII letter, digit
// or underscore. The result may be embedded in query text as a table or column
// name; whether the identifier exists is left for the database to report.
func SanitizeIdentifier(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}
