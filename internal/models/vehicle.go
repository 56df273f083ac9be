package models

import "time"

// Derived connectivity status of a vehicle's tracker.
const (
	VehicleStatusOnline  = "online"
	VehicleStatusOffline = "offline"
)

type Vehicle struct {
	ID       string
	UserID   string
	Name     string
	DeviceID string

	// Mirror of the most recent VehicleLocation; nil until the first fix.
	LastLocation *string
	LastUpdated  *time.Time

	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type VehicleLocation struct {
	ID        uint64
	VehicleID string
	Location  string
	Speed     *float64
	Heading   *float64
	Timestamp time.Time
}

type VehicleCreateInput struct {
	UserID   string
	Name     string
	DeviceID string
}

// LocationFix is one validated position report from a device, before
// persistence. Timestamp nil means "use ingestion time".
type LocationFix struct {
	Latitude  float64
	Longitude float64
	Speed     *float64
	Heading   *float64
	Timestamp *time.Time
}
