package types

// PaymentItem is the per-line snapshot stored on a rental payment. Rates are
// copied from the rental item at payment time so later rate edits do not
// rewrite history.
type PaymentItem struct {
	RentalItemIndex   int    `json:"rental_item_index"`
	Name              string `json:"name"`
	Model             string `json:"model,omitempty"`
	Qty               int    `json:"qty"`
	MonthlyPriceCents int    `json:"monthly_price_cents"`
	Copies            int    `json:"copies"`
	Scans             int    `json:"scans"`
	RatePerPrintCents int    `json:"rate_per_print_cents"`
	RatePerScanCents  int    `json:"rate_per_scan_cents"`
}
