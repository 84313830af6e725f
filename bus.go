package engagement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Brunux-hub/albru-engagement/model"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// EventsChannel is the broadcast channel every lifecycle event is
// published to. Role and worker channels narrow delivery for
// interested consumers.
const EventsChannel = "albru:events"

func RoleChannel(role string) string {
	return fmt.Sprintf("%s:role:%s", EventsChannel, role)
}

func WorkerChannel(workerID string) string {
	return fmt.Sprintf("%s:worker:%s", EventsChannel, workerID)
}

// Bus fans lifecycle events out over Redis pub/sub and mirrors them to
// the webhook queue. Publishing is fire-and-forget: a slow or absent
// consumer never affects the operation that produced the event, and
// publish failures are logged rather than returned.
type Bus struct {
	client redis.UniversalClient
}

func NewBus(client redis.UniversalClient) *Bus {
	return &Bus{client: client}
}

// Publish broadcasts an event to the shared channel.
func (b *Bus) Publish(eventType, leadID string, payload map[string]interface{}) {
	b.publish(EventsChannel, b.newEvent(eventType, leadID, payload))
}

// PublishToRole publishes to the shared channel and the role channel,
// so role-scoped consumers do not have to filter the firehose.
func (b *Bus) PublishToRole(role, eventType, leadID string, payload map[string]interface{}) {
	event := b.newEvent(eventType, leadID, payload)
	b.publish(EventsChannel, event)
	b.publish(RoleChannel(role), event)
}

// PublishToWorker publishes to the shared channel and the worker's
// private channel.
func (b *Bus) PublishToWorker(workerID, eventType, leadID string, payload map[string]interface{}) {
	event := b.newEvent(eventType, leadID, payload)
	b.publish(EventsChannel, event)
	b.publish(WorkerChannel(workerID), event)
}

// Subscribe opens a subscription on the given channels. The caller
// owns the returned PubSub and must close it.
func (b *Bus) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return b.client.Subscribe(ctx, channels...)
}

func (b *Bus) newEvent(eventType, leadID string, payload map[string]interface{}) model.Event {
	return model.Event{
		Type:      eventType,
		LeadID:    leadID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

func (b *Bus) publish(channel string, event model.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logrus.Errorf("marshaling %s event for lead %s failed: %v", event.Type, event.LeadID, err)
		return
	}
	if err := b.client.Publish(context.Background(), channel, data).Err(); err != nil {
		logrus.Errorf("publishing %s event for lead %s to %s failed: %v", event.Type, event.LeadID, channel, err)
	}
	if channel == EventsChannel {
		go func() {
			if err := SendWebhook(NewWebhook{Event: event.Type, Payload: event}); err != nil {
				logrus.Error(err)
			}
		}()
	}
}
