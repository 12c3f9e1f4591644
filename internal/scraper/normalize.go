package scraper

import (
	"regexp"
	"strings"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
)

var (
	whitespaceRunRe = regexp.MustCompile(`[\s\p{Zs}]+`)
	colonSpacingRe  = regexp.MustCompile(`\s*:\s*`)
)

func NormalizeServiceName(raw string) string {
	s := whitespaceRunRe.ReplaceAllString(raw, " ")
	s = colonSpacingRe.ReplaceAllString(s, ": ")
	return strings.TrimSpace(s)
}

type categoryRule struct {
	category pricing.Category
	re       *regexp.Regexp
}

// Order matters: the first matching group wins, so color is tested before
// chemical and treatment terms ("tratamiento de color" stays color).
var categoryRules = []categoryRule{
	{
		category: pricing.CategoryHaircut,
		re:       regexp.MustCompile(`\b(corte|barba|barber|flequillo|rapado|degrad|fade\b|patilla)`),
	},
	{
		category: pricing.CategoryColor,
		re:       regexp.MustCompile(`colou?r|coloraci[oó]n|tintura|tinte|mechas?\b|balayage|babylights?|reflejos|decoloraci[oó]n|matiz|ba[ñn]o de luz|ombr[eé]|iluminaci[oó]n|retoque de ra[ií]z`),
	},
	{
		category: pricing.CategoryChemicalTreatment,
		re:       regexp.MustCompile(`alisado|keratina|permanente|botox|progresiva|lifting|ondulaci[oó]n|plastificado|laciado|qu[ií]mic`),
	},
	{
		category: pricing.CategoryStyling,
		re:       regexp.MustCompile(`peinado|brushing|planchita|planchado|ondas|recogido|trenzas?|styling|bucles|rulos`),
	},
	{
		category: pricing.CategoryTreatments,
		re:       regexp.MustCompile(`tratamiento|hidrataci[oó]n|nutrici[oó]n|mascarilla|ampollas?|reconstrucci[oó]n|cauterizaci[oó]n|spa capilar|detox`),
	},
}

func CategorizeService(name string) pricing.Category {
	s := strings.ToLower(name)
	for _, r := range categoryRules {
		if r.re.MatchString(s) {
			return r.category
		}
	}
	return pricing.CategoryOther
}
