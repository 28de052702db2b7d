package domain

// ExportRow is one trip flattened for a spreadsheet. Stopovers holds the
// stop names in travel order, pipe-separated, so each trip stays on one line.
type ExportRow struct {
	TripID         string `json:"trip_id" csv:"trip_id"`
	LinkedTripID   string `json:"linked_trip_id,omitempty" csv:"linked_trip_id"`
	From           string `json:"from" csv:"from"`
	To             string `json:"to" csv:"to"`
	DepartureDate  string `json:"departure_date" csv:"departure_date"`
	DepartureTime  string `json:"departure_time" csv:"departure_time"`
	DistanceMeters int    `json:"distance_meters" csv:"distance_meters"`
	Price          int    `json:"price" csv:"price"`
	SeatsTotal     int    `json:"seats_total" csv:"seats_total"`
	SeatsAvailable int    `json:"seats_available" csv:"seats_available"`
	Status         string `json:"status" csv:"status"`
	Stopovers      string `json:"stopovers" csv:"stopovers"`
}
