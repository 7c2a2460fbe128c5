package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanIdentity(t *testing.T) {
	assert.Equal(t, "1710034065", CleanIdentity(" 17-1003.4065 "))
	assert.Equal(t, "", CleanIdentity("abc"))
	assert.Equal(t, "1790012345001", CleanIdentity("1790012345001"))
}

func TestIsValidCedula(t *testing.T) {
	tests := []struct {
		name   string
		cedula string
		want   bool
	}{
		{"valid", "1710034065", true},
		{"province 24", "2410034065", true},
		{"province 00", "0010034065", false},
		{"province 25", "2510034065", false},
		{"too short", "171003406", false},
		{"too long", "17100340651", false},
		{"letters", "17100A4065", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidCedula(tt.cedula))
		})
	}
}

func TestIsValidRUC(t *testing.T) {
	assert.True(t, IsValidRUC("1710034065001"))
	assert.False(t, IsValidRUC("1710034065"))
	assert.False(t, IsValidRUC("2510034065001"))
	assert.False(t, IsValidRUC("17100340650a1"))
}

func TestIsValidIdentity(t *testing.T) {
	assert.True(t, IsValidIdentity("1710034065"))
	assert.True(t, IsValidIdentity("1710034065001"))
	assert.False(t, IsValidIdentity("123"))
}

func TestIsNaturalPerson(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"cedula", "1710034065", true},
		{"natural RUC", "1710034065001", true},
		{"company RUC third digit 9", "1790012345001", false},
		{"public RUC third digit 6", "1760012345001", false},
		{"RUC without 001 suffix", "1710034065002", false},
		{"invalid cedula", "2510034065", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNaturalPerson(tt.id))
		})
	}
}
