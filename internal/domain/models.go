package domain

import "time"

// DailyDemandRecord is the quantity of one item sold on one calendar day,
// optionally scoped to a location. Date is midnight UTC.
type DailyDemandRecord struct {
	Date       time.Time `json:"date" db:"date"`
	ItemID     int64     `json:"item_id" db:"item_id"`
	Quantity   int64     `json:"quantity" db:"quantity"`
	LocationID *int64    `json:"location_id,omitempty" db:"location_id"`
}

// SameLocation reports whether the record belongs to the given location.
// A nil location matches every record.
func (r DailyDemandRecord) SameLocation(locationID *int64) bool {
	if locationID == nil {
		return true
	}
	return r.LocationID != nil && *r.LocationID == *locationID
}

// ItemPopularity is the static most-ordered lookup.
type ItemPopularity struct {
	ItemID     int64  `json:"item_id" db:"item_id"`
	ItemName   string `json:"item_name" db:"item_name"`
	OrderCount int64  `json:"order_count" db:"order_count"`
}

// OrderItemPair is one distinct (order, item) membership used for
// co-purchase counting.
type OrderItemPair struct {
	OrderID int64 `json:"order_id" db:"order_id"`
	ItemID  int64 `json:"item_id" db:"item_id"`
}

// Dataset bundles the tables the engine is built from. Pairs is optional.
type Dataset struct {
	Daily []DailyDemandRecord
	Items []ItemPopularity
	Pairs []OrderItemPair
}

// DateRange is an inclusive range of calendar days rendered as YYYY-MM-DD.
type DateRange struct {
	Min *string `json:"min"`
	Max *string `json:"max"`
}

// DateLayout is the wire format of calendar days.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
