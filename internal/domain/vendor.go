package domain

// Vendor is a read-mostly print-shop snapshot consumed by matching.
// The core never mutates vendor records; open/closed and connectivity
// state is owned by the vendor service and merely read here.
type Vendor struct {
	VendorID string `db:"vendor_id"`
	Name     string `db:"name"`

	Latitude  float64 `db:"latitude"`
	Longitude float64 `db:"longitude"`

	Active        bool `db:"active"`
	StoreOpen     bool `db:"store_open"`
	EmailVerified bool `db:"email_verified"`

	PaperSizes     []string `db:"paper_sizes"`
	SupportsColor  bool     `db:"supports_color"`
	SupportsDuplex bool     `db:"supports_duplex"`

	// Per-page rate table, keyed by (color, duplex).
	PriceBWSingle    float64 `db:"price_bw_single"`
	PriceBWDouble    float64 `db:"price_bw_double"`
	PriceColorSingle float64 `db:"price_color_single"`
	PriceColorDouble float64 `db:"price_color_double"`
}

// PricePerPage resolves the applicable per-page rate for a job's
// color/duplex combination. Four-way lookup, no interpolation.
func (v *Vendor) PricePerPage(color, duplex bool) float64 {
	switch {
	case color && duplex:
		return v.PriceColorDouble
	case color:
		return v.PriceColorSingle
	case duplex:
		return v.PriceBWDouble
	default:
		return v.PriceBWSingle
	}
}
