package planner

import "strings"

// categorySynonyms expands colloquial garment groups into the concrete
// product types the catalog uses. The removal oracle receives this table so
// "quita las blusas de arriba" style requests match actual cart lines.
var categorySynonyms = map[string][]string{
	"tops":    {"camisa", "blusa", "playera", "suéter", "sudadera", "top"},
	"bottoms": {"pantalón", "falda", "shorts", "jeans", "leggings"},
	"abrigo":  {"chamarra", "abrigo", "chaleco", "gabardina"},
	"calzado": {"zapatos", "tenis", "botas", "sandalias"},
}

// ExpandCategory returns the concrete types a colloquial category covers, or
// the term itself when no expansion applies.
func ExpandCategory(term string) []string {
	if types, ok := categorySynonyms[strings.ToLower(strings.TrimSpace(term))]; ok {
		return types
	}
	return []string{term}
}

func synonymsPromptSection() string {
	var builder strings.Builder
	for _, group := range []string{"tops", "bottoms", "abrigo", "calzado"} {
		builder.WriteString("- \"" + group + "\" incluye: " + strings.Join(categorySynonyms[group], ", ") + "\n")
	}
	return builder.String()
}
