package shipments

// CreateShipmentRequest carries the fields for booking a new shipment.
type CreateShipmentRequest struct {
	Reference   string  `json:"reference" validate:"required"`
	Origin      string  `json:"origin" validate:"required"`
	Destination string  `json:"destination" validate:"required"`
	Carrier     string  `json:"carrier" validate:"required"`
	WeightKg    float64 `json:"weight_kg" validate:"gte=0"`
	Notes       string  `json:"notes"`
}

// UpdateShipmentRequest carries the editable fields.
type UpdateShipmentRequest struct {
	Origin      string         `json:"origin" validate:"required"`
	Destination string         `json:"destination" validate:"required"`
	Carrier     string         `json:"carrier" validate:"required"`
	Status      ShipmentStatus `json:"status" validate:"required,oneof=draft booked in_transit delivered cancelled"`
	WeightKg    float64        `json:"weight_kg" validate:"gte=0"`
	Notes       string         `json:"notes"`
}

// ListFilters narrows shipment listings.
type ListFilters struct {
	Status  ShipmentStatus
	Carrier string
	Search  string
	Page    int
	PerPage int
}
