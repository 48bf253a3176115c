package sensors

import (
	"strconv"
	"strings"
)

// ParsePinList splits a comma-separated pin list into pin numbers.
// Parsing is deliberately lenient to match the persisted-config format
// this module inherited: a token that is not a valid unsigned integer
// becomes pin 0 instead of failing the whole list. An empty string
// yields no pins.
func ParsePinList(s string) []uint16 {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	tokens := strings.Split(s, ",")
	pins := make([]uint16, 0, len(tokens))
	for _, tok := range tokens {
		n, err := strconv.ParseUint(strings.TrimSpace(tok), 10, 16)
		if err != nil {
			n = 0
		}
		pins = append(pins, uint16(n))
	}
	return pins
}

// FormatPinList renders pins as the comma-separated form ParsePinList
// accepts.
func FormatPinList(pins []uint16) string {
	tokens := make([]string, len(pins))
	for i, pin := range pins {
		tokens[i] = strconv.FormatUint(uint64(pin), 10)
	}
	return strings.Join(tokens, ",")
}
