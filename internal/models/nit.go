package models

import (
	"strconv"
	"strings"
)

// DIAN prime weights, applied from the rightmost digit leftwards
var nitWeights = []int{3, 7, 13, 17, 19, 23, 29, 37, 41, 43, 47, 53, 59, 67, 71}

// NormalizeNIT strips dots, dashes and spaces from an identification.
// A trailing check digit written as "900123456-7" is dropped.
func NormalizeNIT(identification string) string {
	s := strings.TrimSpace(identification)
	if i := strings.LastIndex(s, "-"); i > 0 && len(s)-i == 2 {
		s = s[:i]
	}

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CheckDigit computes the DIAN modulo-11 verification digit of a NIT
func CheckDigit(nit string) (int, bool) {
	digits := NormalizeNIT(nit)
	if digits == "" || len(digits) > len(nitWeights) {
		return 0, false
	}

	sum := 0
	for i := 0; i < len(digits); i++ {
		d := int(digits[len(digits)-1-i] - '0')
		sum += d * nitWeights[i]
	}

	r := sum % 11
	if r < 2 {
		return r, true
	}
	return 11 - r, true
}

// ValidateNIT reports whether checkDigit matches identification.
// An empty check digit cannot be verified and is reported as valid.
func ValidateNIT(identification, checkDigit string) bool {
	checkDigit = strings.TrimSpace(checkDigit)
	if checkDigit == "" {
		return true
	}

	want, err := strconv.Atoi(checkDigit)
	if err != nil {
		return false
	}

	got, ok := CheckDigit(identification)
	return ok && got == want
}
