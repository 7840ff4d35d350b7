package model

// Event is owned by the catalog; the core only reads it. Date is kept as the
// RFC 3339 string the catalog stores.
type Event struct {
	ID         string     `json:"event_id" bson:"event_id"`
	Type       EventType  `json:"event_type" bson:"event_type"`
	Title      string     `json:"title" bson:"title"`
	Venue      string     `json:"venue" bson:"venue"`
	City       string     `json:"city" bson:"city"`
	Country    string     `json:"country" bson:"country"`
	Date       string     `json:"event_date" bson:"event_date"`
	ImageURL   string     `json:"image_url,omitempty" bson:"image_url,omitempty"`
	Featured   bool       `json:"featured,omitempty" bson:"featured,omitempty"`
	Categories []Category `json:"categories,omitempty" bson:"ticket_categories,omitempty"`

	Availability `bson:"-"`

	Tickets []Ticket `json:"tickets,omitempty" bson:"-"`
}

type EventFilter struct {
	Type     EventType
	City     string
	Search   string
	Featured bool
	Limit    int
}
