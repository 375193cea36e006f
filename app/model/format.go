package model

import (
	"fmt"
	"strings"
)

// FormatRecent renders a recent-products snapshot for oracle prompts.
func FormatRecent(entries []RecentProduct) string {
	if len(entries) == 0 {
		return "No hay productos recientes asociados a esta conversación."
	}

	var builder strings.Builder
	for _, e := range entries {
		builder.WriteString(fmt.Sprintf("Producto %d: %s (%s) - %s / %s - $%.2f MXN\n",
			e.Position, e.Product.Name, e.Product.Color, e.Product.Type, e.Product.Category, e.Product.PriceMXN))
	}

	return builder.String()
}

// FormatCart renders cart lines for oracle prompts, numbered by position.
func FormatCart(lines []CartLine) string {
	if len(lines) == 0 {
		return "El carrito está vacío."
	}

	var builder strings.Builder
	for i, l := range lines {
		builder.WriteString(fmt.Sprintf("Producto %d [id=%s]: %s (%s) - %s / %s - $%.2f MXN x%d\n",
			i+1, l.ArticleID, l.Name, l.Color, l.Type, l.Category, l.PriceMXN, l.Quantity))
	}

	return builder.String()
}
