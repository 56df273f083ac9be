package devicews

import "time"

// Message types on the device connection.
const (
	TypeRegister   = "register"
	TypeLocation   = "location"
	TypeRegistered = "registered"
	TypeSuccess    = "success"
	TypeError      = "error"
)

// Envelope is the inbound device message. Latitude/longitude are pointers so
// an omitted coordinate is distinguishable from zero.
type Envelope struct {
	Type      string     `json:"type"`
	DeviceID  string     `json:"deviceId,omitempty"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	Speed     *float64   `json:"speed,omitempty"`
	Heading   *float64   `json:"heading,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type Reply struct {
	Type     string `json:"type"`
	DeviceID string `json:"deviceId,omitempty"`
	Message  string `json:"message,omitempty"`
}
