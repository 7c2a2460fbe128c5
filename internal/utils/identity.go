package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var digitsRe = regexp.MustCompile(`^\d+$`)

// CleanIdentity strips everything but digits from user input.
func CleanIdentity(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidCedula validates an Ecuadorian cédula: ten digits whose leading
// pair is a province code between 01 and 24.
func IsValidCedula(cedula string) bool {
	if len(cedula) != 10 || !digitsRe.MatchString(cedula) {
		return false
	}
	province, err := strconv.Atoi(cedula[:2])
	if err != nil {
		return false
	}
	return province >= 1 && province <= 24
}

// IsValidRUC validates an Ecuadorian RUC: thirteen digits with a valid
// province prefix.
func IsValidRUC(ruc string) bool {
	if len(ruc) != 13 || !digitsRe.MatchString(ruc) {
		return false
	}
	province, err := strconv.Atoi(ruc[:2])
	if err != nil {
		return false
	}
	return province >= 1 && province <= 24
}

// IsValidIdentity accepts either a cédula or a RUC.
func IsValidIdentity(id string) bool {
	return IsValidCedula(id) || IsValidRUC(id)
}

// IsNaturalPerson reports whether the identity belongs to a natural
// person: a plain cédula, or a natural person RUC (cédula + "001" with
// a third digit below six).
func IsNaturalPerson(id string) bool {
	if len(id) == 10 {
		return IsValidCedula(id)
	}
	if len(id) == 13 && strings.HasSuffix(id, "001") && digitsRe.MatchString(id) {
		return id[2] >= '0' && id[2] <= '5'
	}
	return false
}
