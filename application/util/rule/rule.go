// Package rule holds the character classes of RFC 9110 and RFC 9112 that
// the message codecs share.
package rule

const (
	CR   byte = '\r'
	LF   byte = '\n'
	SP   byte = ' '
	HTAB byte = '\t'
)

var (
	// OWS is optional whitespace around field values.
	OWS = []byte{SP, HTAB}
	// Whitespaces are the bytes a lenient parser may read as SP.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3-3
	Whitespaces = []byte{SP, HTAB, 0x0b, 0x0c, CR}
)

func IsWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', 0x0b, 0x0c, '\r':
		return true
	}
	return false
}

func IsDigit(r rune) bool { return '0' <= r && r <= '9' }
