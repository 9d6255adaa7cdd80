package nlparse

import (
	"errors"
	"strings"
)

var ErrPhoneParse = errors.New("unrecognized phone number")

var spokenDigits = map[string]string{
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
	"oh": "0", "o": "0",
}

var phoneFormatting = strings.NewReplacer("+", "", "-", " ", "(", "", ")", "", ".", " ", ",", " ")

// NormalizePhone converts a spoken or formatted phone number to bare digits.
// "double five triple six" becomes "55666".
func NormalizePhone(input string) (string, error) {
	words := strings.Fields(strings.ToLower(phoneFormatting.Replace(input)))

	var b strings.Builder
	for i := 0; i < len(words); i++ {
		w := words[i]

		if (w == "double" || w == "triple") && i+1 < len(words) {
			if d, ok := spokenDigits[words[i+1]]; ok {
				repeat := 2
				if w == "triple" {
					repeat = 3
				}
				b.WriteString(strings.Repeat(d, repeat))
				i++
				continue
			}
		}

		if d, ok := spokenDigits[w]; ok {
			b.WriteString(d)
		} else if isDigits(w) {
			b.WriteString(w)
		}
	}

	phone := b.String()
	if phone == "" {
		return "", ErrPhoneParse
	}
	return phone, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
