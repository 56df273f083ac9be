package messages

import "time"

// LocationReceived is one raw fix relayed from the MQTT bridge, keyed by
// device id on the topic.
type LocationReceived struct {
	DeviceID  string   `json:"device_id"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Speed     *float64 `json:"speed,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	// Satellite count as reported by the tracker; informational only.
	Satellites *int       `json:"satellites,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	ReceivedAt time.Time  `json:"received_at"`
}

// LocationUpdated is published after a fix has been persisted, for downstream
// consumers. Delivery is best-effort.
type LocationUpdated struct {
	VehicleID string    `json:"vehicle_id"`
	DeviceID  string    `json:"device_id"`
	Location  string    `json:"location"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
