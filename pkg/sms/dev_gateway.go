package sms

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// DevGateway logs messages instead of sending them (SMS_MODE=dev)
type DevGateway struct {
	logger *logrus.Logger
	seq    atomic.Int64
}

// NewDevGateway creates a new development gateway
func NewDevGateway(logger *logrus.Logger) *DevGateway {
	return &DevGateway{logger: logger}
}

// SendMessage logs the message and returns a sequential transaction id
func (g *DevGateway) SendMessage(phone, message string) (int64, error) {
	id := g.seq.Add(1)
	g.logger.WithFields(logrus.Fields{
		"phone":          phone,
		"message":        message,
		"transaction_id": id,
	}).Info("SMS (dev mode, not sent)")
	return id, nil
}

// GetName returns the name of this SMS gateway
func (g *DevGateway) GetName() string {
	return "Dev Gateway"
}
