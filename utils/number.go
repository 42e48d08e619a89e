package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"guild-contributions/internal/types"
)

var (
	suffixedNumber = regexp.MustCompile(`^([+-]?\d+(?:\.\d+)?)([KMBT])$`)
	plainNumber    = regexp.MustCompile(`^[+-]?\d+(?:\.\d+)?$`)
	notNumeric     = regexp.MustCompile(`[^0-9+\-.]`)

	separators = strings.NewReplacer(",", "", " ", "", "\u00a0", "", "\u202f", "", "\u2009", "", "'", "")

	magnitudes = map[string]int64{
		"K": 1e3,
		"M": 1e6,
		"B": 1e9,
		"T": 1e12,
	}
)

// ParseNumber converts human-formatted numeric text ("1,234", "2.5K") into a
// canonical numeric string. Text matching no rule is reduced to its digits,
// signs and decimal points and returned with an error wrapping
// types.ErrParseAmbiguous. Empty input yields "" (absent, not zero).
func ParseNumber(text string) (string, error) {
	s := separators.Replace(strings.TrimSpace(text))
	if s == "" {
		return "", nil
	}

	if m := suffixedNumber.FindStringSubmatch(s); m != nil {
		mantissa, ok := new(big.Rat).SetString(m[1])
		if !ok {
			return "", fmt.Errorf("%w: %q", types.ErrParseAmbiguous, text)
		}
		mantissa.Mul(mantissa, new(big.Rat).SetInt64(magnitudes[m[2]]))
		return roundHalfAway(mantissa).String(), nil
	}

	if plainNumber.MatchString(s) {
		return s, nil
	}

	return notNumeric.ReplaceAllString(s, ""), fmt.Errorf("%w: %q", types.ErrParseAmbiguous, text)
}

// NormalizeNumber is ParseNumber without the ambiguity signal
func NormalizeNumber(text string) string {
	s, _ := ParseNumber(text)
	return s
}

func roundHalfAway(r *big.Rat) *big.Int {
	num := new(big.Int).Abs(r.Num())
	den := r.Denom()

	// floor((2*num + den) / (2*den)) rounds |r| half up
	twice := new(big.Int).Lsh(num, 1)
	twice.Add(twice, den)
	q := new(big.Int).Quo(twice, new(big.Int).Lsh(den, 1))
	if r.Sign() < 0 {
		q.Neg(q)
	}
	return q
}
