// Package notify is the speech/notification side-effect layer invoked
// on trigger (spec §1 names it as an external collaborator the core
// still needs an interface to call). Adapted from the teacher's
// pkg/storage/redis/queue_store.go: the teacher used Redis Streams as a
// work queue (XAdd/XReadGroup/XAck); this system has no queue, so the
// same client is repointed at Pub/Sub, used purely for fan-out.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/adil-adysh/plan-flow/pkg/models"
)

// TriggeredChannel is the Pub/Sub channel occurrence-fired notifications
// are published to.
const TriggeredChannel = "scheduler:occurrence:triggered"

// Notifier is the best-effort side-effect invoked when an occurrence
// fires. Failures are never allowed to block the trigger pipeline.
type Notifier interface {
	NotifyTriggered(ctx context.Context, occ models.TaskOccurrence, exec models.TaskExecution) error
}

// RedisNotifier publishes trigger events on a Redis Pub/Sub channel.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier builds a notifier over an existing Redis connection.
func NewRedisNotifier(addr string) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisNotifier{client: client}, nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

type triggeredPayload struct {
	OccurrenceID string `json:"occurrence_id"`
	TaskID       string `json:"task_id"`
	ExecutionID  string `json:"execution_id"`
	State        string `json:"state"`
}

func (n *RedisNotifier) NotifyTriggered(ctx context.Context, occ models.TaskOccurrence, exec models.TaskExecution) error {
	payload, err := json.Marshal(triggeredPayload{
		OccurrenceID: occ.ID.String(),
		TaskID:       occ.TaskID.String(),
		ExecutionID:  exec.ID.String(),
		State:        string(exec.State),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := n.client.Publish(ctx, TriggeredChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// LogNotifier is the default/dev notifier: it just logs the trigger,
// grounded on the teacher's local-filesystem fallback pattern for
// environments without a Redis dependency available.
type LogNotifier struct{}

func (LogNotifier) NotifyTriggered(ctx context.Context, occ models.TaskOccurrence, exec models.TaskExecution) error {
	log.Printf("[notify] occurrence %s (task %s) triggered, execution %s state=%s", occ.ID, occ.TaskID, exec.ID, exec.State)
	return nil
}
