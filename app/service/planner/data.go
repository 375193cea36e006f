package planner

// RemovalKind tags how a removal request addresses the cart.
type RemovalKind string

const (
	RemovalNone     RemovalKind = "none"
	RemovalSingle   RemovalKind = "single"
	RemovalByName   RemovalKind = "by_name"
	RemovalByType   RemovalKind = "by_category"
	RemovalByColor  RemovalKind = "by_color"
	RemovalByPrice  RemovalKind = "by_price"
	RemovalQuantity RemovalKind = "quantity_change"
	RemovalAll      RemovalKind = "all"
)

// RemovalPlan is a structured, pre-validated cart removal. QuantityChanges
// holds resulting quantities, never deltas.
type RemovalPlan struct {
	Kind              RemovalKind    `json:"removal_kind"`
	ItemsToRemove     []string       `json:"items_to_remove"`
	QuantityChanges   map[string]int `json:"quantity_changes"`
	Confidence        float64        `json:"confidence"`
	NeedsConfirmation bool           `json:"needs_confirmation"`
}

// Empty reports whether the plan would touch nothing. Callers must never
// treat an empty plan as silently done; it means the request needs
// disambiguation against the full cart.
func (p RemovalPlan) Empty() bool {
	return len(p.ItemsToRemove) == 0 && len(p.QuantityChanges) == 0
}

// AffectedCount is the number of distinct articles the plan touches, the
// input to the blast-radius guard.
func (p RemovalPlan) AffectedCount() int {
	seen := make(map[string]bool, len(p.ItemsToRemove)+len(p.QuantityChanges))
	for _, id := range p.ItemsToRemove {
		seen[id] = true
	}
	for id := range p.QuantityChanges {
		seen[id] = true
	}
	return len(seen)
}

// AddItem is one add sub-request of a multi-action plan.
type AddItem struct {
	ReferenceText string  `json:"reference_text"`
	Position      int     `json:"position"`
	ArticleID     string  `json:"article_id"`
	Confidence    float64 `json:"confidence"`
	Resolved      bool    `json:"resolved"`
}

// RemoveItem is one remove sub-request of a multi-action plan.
type RemoveItem struct {
	ReferenceText string  `json:"reference_text"`
	CartPosition  int     `json:"cart_position"`
	ArticleID     string  `json:"article_id"`
	Confidence    float64 `json:"confidence"`
	Resolved      bool    `json:"resolved"`
}

// MultiActionPlan decomposes one message into independent add and remove
// references. Ambiguous is evaluated once for the whole plan: a single low
// confidence sub-reference escalates everything to confirmation.
type MultiActionPlan struct {
	ItemsToAdd    []AddItem    `json:"items_to_add"`
	ItemsToRemove []RemoveItem `json:"items_to_remove"`
	Ambiguous     bool         `json:"ambiguous"`
}

// AffectedCount counts distinct articles across both halves of the plan.
func (p MultiActionPlan) AffectedCount() int {
	seen := make(map[string]bool)
	for _, it := range p.ItemsToAdd {
		if it.ArticleID != "" {
			seen[it.ArticleID] = true
		}
	}
	for _, it := range p.ItemsToRemove {
		if it.ArticleID != "" {
			seen[it.ArticleID] = true
		}
	}
	return len(seen)
}

// Empty reports whether nothing in the message decomposed into an action.
func (p MultiActionPlan) Empty() bool {
	return len(p.ItemsToAdd) == 0 && len(p.ItemsToRemove) == 0
}

type removalOracleResponse struct {
	RemovalKind       string         `json:"removal_kind"`
	ItemsToRemove     []string       `json:"items_to_remove"`
	QuantityChanges   map[string]int `json:"quantity_changes"`
	Confidence        *float64       `json:"confidence"`
	NeedsConfirmation bool           `json:"needs_confirmation"`
}

type multiOracleResponse struct {
	HasMultiAction bool `json:"has_multi_action"`
	ItemsToAdd     []struct {
		ReferenceText string `json:"reference_text"`
		Position      *int   `json:"position"`
	} `json:"items_to_add"`
	ItemsToRemove []struct {
		ReferenceText string `json:"reference_text"`
		CartPosition  *int   `json:"cart_position"`
	} `json:"items_to_remove"`
	NeedsConfirmation bool `json:"needs_confirmation"`
}

var validRemovalKinds = map[RemovalKind]bool{
	RemovalNone:     true,
	RemovalSingle:   true,
	RemovalByName:   true,
	RemovalByType:   true,
	RemovalByColor:  true,
	RemovalByPrice:  true,
	RemovalQuantity: true,
	RemovalAll:      true,
}
