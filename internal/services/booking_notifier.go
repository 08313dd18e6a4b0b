package services

import (
	"context"
	"fmt"

	"github.com/greenvalley/society-portal-backend/internal/models"
	"github.com/greenvalley/society-portal-backend/internal/websocket"
	"github.com/greenvalley/society-portal-backend/pkg/sms"
	"github.com/sirupsen/logrus"
)

// HubNotifier pushes booking events over the WebSocket hub and texts residents
// when their booking is decided. Delivery is best effort.
type HubNotifier struct {
	hub     *websocket.Hub
	gateway sms.SMSGateway
	logger  *logrus.Logger
}

// NewHubNotifier creates a notifier. gateway may be nil to disable SMS.
func NewHubNotifier(hub *websocket.Hub, gateway sms.SMSGateway, logger *logrus.Logger) *HubNotifier {
	return &HubNotifier{
		hub:     hub,
		gateway: gateway,
		logger:  logger,
	}
}

// BookingRequested tells admins a new request is waiting
func (n *HubNotifier) BookingRequested(_ context.Context, booking *models.AmenityBooking) {
	n.hub.SendToRole(models.RoleAdmin, websocket.NewMessage(websocket.TypeBookingRequested, websocket.BookingPayload{
		BookingID:   booking.ID.String(),
		AmenityID:   booking.AmenityID.String(),
		BookingDate: booking.BookingDateString(),
		TimeSlot:    string(booking.TimeSlot),
		Status:      string(booking.Status),
	}))
}

// BookingDecided tells the owning resident and admins, then texts the resident
func (n *HubNotifier) BookingDecided(_ context.Context, booking *models.AdminBookingView) {
	payload := websocket.BookingPayload{
		BookingID:   booking.ID.String(),
		AmenityID:   booking.AmenityID.String(),
		AmenityName: booking.AmenityName,
		BookingDate: booking.BookingDateString(),
		TimeSlot:    string(booking.TimeSlot),
		Status:      string(booking.Status),
		AdminRemark: booking.AdminRemark.String,
	}
	n.hub.SendToUserAndRole(booking.UserID, models.RoleAdmin, websocket.NewMessage(websocket.TypeBookingDecided, payload))

	if n.gateway == nil || !booking.ResidentPhone.Valid {
		return
	}

	phone := sms.NormalizePhone(booking.ResidentPhone.String)
	if phone == "" {
		return
	}

	message := fmt.Sprintf("Green Valley: your %s booking for %s (%s) is %s.",
		booking.AmenityName, booking.BookingDateString(), booking.TimeSlot, booking.Status)
	if booking.AdminRemark.Valid && booking.AdminRemark.String != "" {
		message += " Remark: " + booking.AdminRemark.String
	}

	// The HTTP response must not wait on the gateway
	go func() {
		if _, err := n.gateway.SendMessage(phone, message); err != nil {
			n.logger.WithError(err).WithFields(logrus.Fields{
				"booking_id": booking.ID,
				"gateway":    n.gateway.GetName(),
			}).Warn("Failed to send booking decision SMS")
		}
	}()
}

// BookingsExpired tells admins a sweep expired some requests
func (n *HubNotifier) BookingsExpired(_ context.Context, count int64, trigger string) {
	n.hub.SendToRole(models.RoleAdmin, websocket.NewMessage(websocket.TypeBookingsExpired, websocket.ExpiredPayload{
		Count:   count,
		Trigger: trigger,
	}))
}

// DowntimeScheduled tells admins a maintenance window was added
func (n *HubNotifier) DowntimeScheduled(_ context.Context, downtime *models.AmenityDowntime) {
	n.hub.SendToRole(models.RoleAdmin, websocket.NewMessage(websocket.TypeDowntimeAdded, downtime))
}
