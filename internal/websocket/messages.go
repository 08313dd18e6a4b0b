package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server -> Client event types
	TypeBookingRequested MessageType = "booking.requested" // to admins
	TypeBookingDecided   MessageType = "booking.decided"   // to the owning resident and admins
	TypeBookingsExpired  MessageType = "booking.expired"   // to admins, after a sweep
	TypeDowntimeAdded    MessageType = "downtime.scheduled"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong MessageType = "pong"
)

// Message represents a WebSocket message envelope
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// BookingPayload is the payload for booking.requested and booking.decided events
type BookingPayload struct {
	BookingID   string `json:"booking_id"`
	AmenityID   string `json:"amenity_id"`
	AmenityName string `json:"amenity_name,omitempty"`
	BookingDate string `json:"booking_date"`
	TimeSlot    string `json:"time_slot"`
	Status      string `json:"status"`
	AdminRemark string `json:"admin_remark,omitempty"`
}

// ExpiredPayload is the payload for booking.expired events
type ExpiredPayload struct {
	Count   int64  `json:"count"`
	Trigger string `json:"trigger"`
}
