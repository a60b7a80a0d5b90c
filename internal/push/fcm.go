// Package push delivers lifecycle notifications through Firebase Cloud Messaging.
package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"ridepool/internal/domain"
	"ridepool/internal/service"
)

// FCMDispatcher sends notifications to the recipient's registered device token.
type FCMDispatcher struct {
	client *messaging.Client
	log    logrus.FieldLogger
}

// NewFCMDispatcher initializes a Firebase app from a service account file.
func NewFCMDispatcher(ctx context.Context, credentialsFile string, log logrus.FieldLogger) (*FCMDispatcher, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	return &FCMDispatcher{client: client, log: log}, nil
}

// Dispatch sends n to the recipient. Users without a device token are skipped.
func (f *FCMDispatcher) Dispatch(ctx context.Context, recipient *domain.User, n service.Notification) error {
	if recipient.PushToken == "" {
		f.log.WithFields(logrus.Fields{
			"recipient": recipient.ID,
			"type":      n.Type,
		}).Debug("no push token, notification skipped")
		return nil
	}

	if _, err := f.client.Send(ctx, buildMessage(recipient.PushToken, n)); err != nil {
		return fmt.Errorf("fcm send %s to %s: %w", n.Type, recipient.ID, err)
	}
	return nil
}

func buildMessage(token string, n service.Notification) *messaging.Message {
	data := make(map[string]string, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	data["type"] = string(n.Type)

	return &messaging.Message{
		Token: token,
		Data:  data,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
}

var _ service.Dispatcher = (*FCMDispatcher)(nil)
