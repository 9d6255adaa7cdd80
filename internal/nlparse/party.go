package nlparse

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

var ErrPartySizeParse = errors.New("unrecognized party size")

var unitWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
	"couple": 2, "pair": 2, "dozen": 12,
}

var tensWords = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// ParsePartySize extracts a head count from phrases like "party of 4",
// "four people" or "twenty five". Range checks are left to the caller.
func ParsePartySize(input string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(input))

	if digits := digitRun.FindString(s); digits != "" {
		n, err := strconv.Atoi(digits)
		if err != nil {
			return 0, ErrPartySizeParse
		}
		return n, nil
	}

	words := strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	for i, w := range words {
		if tens, ok := tensWords[w]; ok {
			if i+1 < len(words) {
				if unit, ok := unitWords[words[i+1]]; ok && unit > 0 && unit < 10 {
					return tens + unit, nil
				}
			}
			return tens, nil
		}
		if n, ok := unitWords[w]; ok {
			return n, nil
		}
	}

	return 0, ErrPartySizeParse
}
