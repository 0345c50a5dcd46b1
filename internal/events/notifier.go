package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atlrp/server/internal/world"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Queue names of the outbound client notification channel.
const (
	QueueCharacterLoaded    = "atl.character.loaded"
	QueueStatusSync         = "atl.status.sync"
	QueuePermissionsRefresh = "atl.permissions.refresh"
)

// AMQPNotifier publishes client notifications to RabbitMQ queues.
// Delivery is best-effort: publish errors are logged and dropped, there
// is no retry and no acknowledgement.
type AMQPNotifier struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  *zap.Logger
}

var _ world.Notifier = (*AMQPNotifier)(nil)

func NewAMQPNotifier(url string, log *zap.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	for _, q := range []string{QueueCharacterLoaded, QueueStatusSync, QueuePermissionsRefresh} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", q, err)
		}
	}
	return &AMQPNotifier{conn: conn, ch: ch, log: log}, nil
}

func (n *AMQPNotifier) CharacterLoaded(sessionID uint64, snapshot map[string]any) {
	n.publish(QueueCharacterLoaded, characterLoadedPayload(sessionID, snapshot))
}

func (n *AMQPNotifier) StatusSync(sessionID uint64, status map[string]world.StatusLevel) {
	n.publish(QueueStatusSync, statusSyncPayload(sessionID, status))
}

func (n *AMQPNotifier) PermissionsChanged(sessionID uint64, group string) {
	n.publish(QueuePermissionsRefresh, permissionsPayload(sessionID, group))
}

func (n *AMQPNotifier) publish(queue string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("marshal notification", zap.String("queue", queue), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = n.ch.PublishWithContext(ctx,
		"",    // exchange
		queue, // routing key (queue name)
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		n.log.Error("publish notification", zap.String("queue", queue), zap.Error(err))
	}
}

func (n *AMQPNotifier) Close() {
	n.conn.Close()
}

func characterLoadedPayload(sessionID uint64, snapshot map[string]any) map[string]any {
	return map[string]any{"sessionId": sessionID, "player": snapshot}
}

func statusSyncPayload(sessionID uint64, status map[string]world.StatusLevel) map[string]any {
	return map[string]any{"sessionId": sessionID, "status": status}
}

func permissionsPayload(sessionID uint64, group string) map[string]any {
	return map[string]any{"sessionId": sessionID, "group": group}
}

// NopNotifier drops every notification. Used when the event channel is
// disabled in config.
type NopNotifier struct{}

var _ world.Notifier = NopNotifier{}

func (NopNotifier) CharacterLoaded(uint64, map[string]any)           {}
func (NopNotifier) StatusSync(uint64, map[string]world.StatusLevel)  {}
func (NopNotifier) PermissionsChanged(uint64, string)                {}
