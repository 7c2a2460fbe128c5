package extractor

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyword(t *testing.T) {
	step := Keyword("SIN COBERTURA", "no se encuentra activo")

	v, ok := step("La persona No Se Encuentra Activo en ninguna empresa")
	assert.True(t, ok)
	assert.Equal(t, "SIN COBERTURA", v)

	_, ok = step("texto sin la frase esperada")
	assert.False(t, ok)
}

func TestPattern(t *testing.T) {
	step := Pattern(regexp.MustCompile(`Tipo de Afiliación:\s*([^.]+)`))

	v, ok := step("Tipo de Afiliación: Seguro General. Observación: ninguna")
	assert.True(t, ok)
	assert.Equal(t, "Seguro General", v)

	_, ok = step("sin el campo")
	assert.False(t, ok)
}

func TestApplyAlwaysCoversEveryField(t *testing.T) {
	rules := []FieldRule{
		{Field: "cobertura", Steps: []Step{Keyword("CON COBERTURA", "activo")}},
		{Field: "detalle", Steps: []Step{Pattern(regexp.MustCompile(`Observación:\s*(\S+)`))}},
		{Field: "nunca", Steps: []Step{Keyword("x", "frase inexistente")}},
	}

	rec := Apply("El afiliado se encuentra activo. Observación: vigente", rules)

	assert.Equal(t, "CON COBERTURA", rec["cobertura"])
	assert.Equal(t, "vigente", rec["detalle"])
	assert.Equal(t, Undetermined, rec["nunca"])
	assert.Len(t, rec, 3)
}

func TestApplyFirstStepWins(t *testing.T) {
	rules := []FieldRule{{
		Field: "campo",
		Steps: []Step{
			Keyword("primero", "texto"),
			Keyword("segundo", "texto"),
		},
	}}

	rec := Apply("texto", rules)
	assert.Equal(t, "primero", rec["campo"])
}
