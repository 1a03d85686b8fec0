package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	pubnub "github.com/pubnub/go/v7"
)

type ListenerConfig struct {
	SubscribeKey string
	SecretKey    string
	CipherKey    string
	UserID       string
	Channel      string
}

// NotificationHandler receives the callback fields of one pushed notification.
type NotificationHandler func(ctx context.Context, fields map[string]string) error

// NotificationListener subscribes to the PubNub channel on which JazzCash
// payment notifications are published and feeds them to a handler.
type NotificationListener struct {
	pn       *pubnub.PubNub
	listener *pubnub.Listener
	channels []string
	handler  NotificationHandler
	logger   *slog.Logger
}

func NewNotificationListener(cfg ListenerConfig, handler NotificationHandler, logger *slog.Logger) *NotificationListener {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey
	pnCfg.CipherKey = cfg.CipherKey

	return &NotificationListener{
		pn:       pubnub.NewPubNub(pnCfg),
		listener: pubnub.NewListener(),
		channels: []string{cfg.Channel},
		handler:  handler,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled.
func (l *NotificationListener) Run(ctx context.Context) {
	l.pn.AddListener(l.listener)
	l.pn.Subscribe().Channels(l.channels).Execute()
	l.logger.Info("Subscribed to payment notifications", "channels", l.channels)

	for {
		select {
		case status := <-l.listener.Status:
			l.logStatus(status)

		case message := <-l.listener.Message:
			if message == nil {
				continue
			}
			l.handleMessage(ctx, message.Channel, message.Message)

		case <-ctx.Done():
			l.pn.Unsubscribe().Channels(l.channels).Execute()
			l.logger.Info("Payment notification listener stopped")
			return
		}
	}
}

func (l *NotificationListener) handleMessage(ctx context.Context, channel string, payload interface{}) {
	fields, err := decodeNotification(payload)
	if err != nil {
		l.logger.Warn("Dropping malformed payment notification", "channel", channel, "error", err)
		return
	}
	if err := l.handler(ctx, fields); err != nil {
		l.logger.Error("Failed to process payment notification",
			"channel", channel,
			"txn_ref", fields["pp_TxnRefNo"],
			"error", err,
		)
	}
}

func (l *NotificationListener) logStatus(status *pubnub.PNStatus) {
	if status == nil {
		return
	}
	switch status.Category {
	case pubnub.PNConnectedCategory:
		l.logger.Info("Connected to PubNub")
	case pubnub.PNReconnectedCategory:
		l.logger.Info("Reconnected to PubNub")
	case pubnub.PNDisconnectedCategory:
		l.logger.Warn("Disconnected from PubNub")
	case pubnub.PNAccessDeniedCategory:
		l.logger.Error("PubNub access denied", "channels", l.channels)
	case pubnub.PNReconnectionAttemptsExhausted:
		l.logger.Error("PubNub reconnection attempts exhausted")
	default:
		l.logger.Debug("PubNub status", "category", status.Category)
	}
}

// decodeNotification accepts either a JSON object or a JSON encoded string.
func decodeNotification(payload interface{}) (map[string]string, error) {
	switch v := payload.(type) {
	case string:
		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(v), &raw); err != nil {
			return nil, fmt.Errorf("invalid notification json: %w", err)
		}
		return FlattenFields(raw), nil
	case map[string]interface{}:
		return FlattenFields(v), nil
	default:
		return nil, fmt.Errorf("unexpected notification type %T", payload)
	}
}

// FlattenFields renders decoded JSON values as the strings a gateway signed.
// Numbers keep their plain decimal form.
func FlattenFields(raw map[string]interface{}) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
