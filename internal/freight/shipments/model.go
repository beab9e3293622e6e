package shipments

import "time"

// ShipmentStatus tracks a shipment through its lifecycle.
type ShipmentStatus string

const (
	StatusDraft     ShipmentStatus = "draft"
	StatusBooked    ShipmentStatus = "booked"
	StatusInTransit ShipmentStatus = "in_transit"
	StatusDelivered ShipmentStatus = "delivered"
	StatusCancelled ShipmentStatus = "cancelled"
)

// Shipment represents a freight shipment entity.
type Shipment struct {
	ID          int64          `json:"id"`
	Reference   string         `json:"reference"`
	Origin      string         `json:"origin"`
	Destination string         `json:"destination"`
	Carrier     string         `json:"carrier"`
	Status      ShipmentStatus `json:"status"`
	WeightKg    float64        `json:"weight_kg"`
	Notes       string         `json:"notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
