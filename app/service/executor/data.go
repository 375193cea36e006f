package executor

import (
	"fmt"
	"strings"

	"cedabot/app/model"
)

// Outcome is the per-item result of executing a plan or single reference.
// Partial failures are first-class: a failed item never hides what did
// succeed.
type Outcome struct {
	Added   []string
	Removed []string
	Updated []string
	Failed  []string

	// Lines and Total are re-read from the store after the mutation; the
	// executor never trusts pre-mutation counters.
	Lines []model.CartLine
	Total float64
}

// Mutated reports whether anything was written.
func (o *Outcome) Mutated() bool {
	return len(o.Added) > 0 || len(o.Removed) > 0 || len(o.Updated) > 0
}

// Summary renders the outcome as conversational Spanish, naming successes
// and failures so partial execution is always visible to the user.
func (o *Outcome) Summary() string {
	var parts []string

	if len(o.Added) > 0 {
		parts = append(parts, "Agregué: "+strings.Join(o.Added, ", ")+".")
	}
	if len(o.Removed) > 0 {
		parts = append(parts, "Quité: "+strings.Join(o.Removed, ", ")+".")
	}
	if len(o.Updated) > 0 {
		parts = append(parts, "Actualicé: "+strings.Join(o.Updated, ", ")+".")
	}
	if len(o.Failed) > 0 {
		parts = append(parts, "No pude procesar: "+strings.Join(o.Failed, ", ")+".")
	}

	if len(parts) == 0 {
		return "No hice ningún cambio en tu carrito."
	}

	summary := strings.Join(parts, " ")

	if o.Lines == nil {
		return summary
	}

	if len(o.Lines) == 0 {
		return summary + " Tu carrito quedó vacío."
	}

	return summary + fmt.Sprintf(" Tu carrito tiene ahora %d producto(s), total aproximado $%.2f MXN.",
		len(o.Lines), o.Total)
}
