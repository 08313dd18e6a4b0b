package sms

// SMSGateway defines the interface for sending SMS messages
type SMSGateway interface {
	// SendMessage sends a text message to a single phone number.
	// Returns a transaction ID and an error if the send failed.
	SendMessage(phone, message string) (int64, error)

	// GetName returns the name of the SMS gateway implementation
	GetName() string
}
