package services

import (
	"context"
	"time"

	"go-bnpl/repository"
	"go-bnpl/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Notification is one message for a user, delivered by email and push.
type Notification struct {
	Subject string
	Body    string
	Data    map[string]string
}

// Notifier delivers notifications without blocking the caller.
type Notifier interface {
	NotifyUser(userID primitive.ObjectID, n Notification)
}

type Pusher interface {
	Send(ctx context.Context, msg utils.PushMessage) error
}

const notifyTimeout = 15 * time.Second

// Dispatcher sends each notification in its own goroutine. Delivery errors
// are logged and never reach the request that caused them.
type Dispatcher struct {
	Users  repository.UserStore
	Mailer utils.Mailer
	Push   Pusher
	Log    *zap.Logger
}

func (d *Dispatcher) NotifyUser(userID primitive.ObjectID, n Notification) {
	go d.deliver(userID, n)
}

func (d *Dispatcher) deliver(userID primitive.ObjectID, n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	log := d.Log.With(zap.String("user_id", userID.Hex()), zap.String("subject", n.Subject))
	user, err := d.Users.Get(ctx, userID)
	if err != nil {
		log.Warn("notification recipient lookup failed", zap.Error(err))
		return
	}

	if d.Mailer != nil && user.Email != "" {
		if err := d.Mailer.SendEmail(user.Email, n.Subject, utils.TextToHTML(n.Body)); err != nil {
			log.Warn("failed to send email", zap.String("email", user.Email), zap.Error(err))
		}
	}
	if d.Push != nil && utils.IsExpoToken(user.ExpoPushToken) {
		msg := utils.PushMessage{To: user.ExpoPushToken, Title: n.Subject, Body: n.Body, Data: n.Data}
		if err := d.Push.Send(ctx, msg); err != nil {
			log.Warn("failed to send push notification", zap.Error(err))
		}
	}
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) NotifyUser(primitive.ObjectID, Notification) {}
