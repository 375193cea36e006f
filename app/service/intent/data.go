package intent

// Kind is the closed set of cart intents. Dispatch over it is exhaustive: a
// new kind does not compile without a branch everywhere it is matched.
type Kind string

const (
	KindNone             Kind = "none"
	KindShowCart         Kind = "show_cart"
	KindAddToCart        Kind = "add_to_cart"
	KindRemoveFromCart   Kind = "remove_from_cart"
	KindMultiAction      Kind = "multi_action"
	KindCheckout         Kind = "checkout"
	KindContinueShopping Kind = "continue_shopping"
	KindClearCart        Kind = "clear_cart"
)

// Intent is the classified user request. DirectIndex is 0 when the oracle
// could not infer an explicit position; callers must re-validate it against
// their own candidate set regardless.
type Intent struct {
	Kind              Kind
	DirectIndex       int
	NeedsConfirmation bool
	Confidence        float64
}

// SafeNone is the no-mutation fallback returned on malformed oracle output.
func SafeNone() Intent {
	return Intent{
		Kind:              KindNone,
		NeedsConfirmation: true,
		Confidence:        0,
	}
}

type oracleResponse struct {
	Mode              string   `json:"mode"`
	ProductIndex      *int     `json:"product_index"`
	NeedsConfirmation bool     `json:"needs_confirmation"`
	Confidence        *float64 `json:"confidence"`
}

var validKinds = map[Kind]bool{
	KindNone:             true,
	KindShowCart:         true,
	KindAddToCart:        true,
	KindRemoveFromCart:   true,
	KindMultiAction:      true,
	KindCheckout:         true,
	KindContinueShopping: true,
	KindClearCart:        true,
}
