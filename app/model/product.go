package model

// Product mirrors a row of the products catalog.
type Product struct {
	ArticleID   string  `json:"article_id"`
	Name        string  `json:"prod_name"`
	Type        string  `json:"product_type_name"`
	Category    string  `json:"product_group_name"`
	Color       string  `json:"colour_group_name"`
	Description string  `json:"detail_desc"`
	PriceMXN    float64 `json:"price_mxn"`
	ImageURL    string  `json:"image_url"`
}

// CartLine is one cart entry joined with its product attributes.
// Quantity is always >= 1: a line driven to zero is deleted, never stored.
type CartLine struct {
	ArticleID string  `json:"article_id"`
	Quantity  int     `json:"quantity"`
	Name      string  `json:"prod_name"`
	Type      string  `json:"product_type_name"`
	Category  string  `json:"product_group_name"`
	Color     string  `json:"colour_group_name"`
	PriceMXN  float64 `json:"price_mxn"`
	ImageURL  string  `json:"image_url"`
}

// Subtotal returns the line price times quantity.
func (l CartLine) Subtotal() float64 {
	return l.PriceMXN * float64(l.Quantity)
}

// RecentProduct is one entry of the last product listing shown to the user.
// Positions are assigned 1..N at save time and are only valid until the next
// save for the same conversation.
type RecentProduct struct {
	Position int     `json:"position"`
	Product  Product `json:"product"`
}

// CartTotal sums line subtotals.
func CartTotal(lines []CartLine) float64 {
	var total float64
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total
}
