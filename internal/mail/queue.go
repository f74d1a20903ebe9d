// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Latchkey Contributors

package mail

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/samber/oops"
)

// TaskDeliver is the asynq task type carrying one Message.
const TaskDeliver = "mail:deliver"

// DefaultQueue is the asynq queue mail tasks are placed on.
const DefaultQueue = "mail"

// enqueuer is satisfied by *asynq.Client.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueSender defers delivery to the mail worker through asynq. Send
// succeeds once the task is stored in Redis.
type QueueSender struct {
	client   enqueuer
	queue    string
	maxRetry int
	timeout  time.Duration
}

// QueueOptions tunes enqueued tasks. Zero values use defaults.
type QueueOptions struct {
	Queue    string
	MaxRetry int
	Timeout  time.Duration
}

// NewQueueSender creates a QueueSender over client.
func NewQueueSender(client enqueuer, opts QueueOptions) *QueueSender {
	q := &QueueSender{client: client, queue: DefaultQueue, maxRetry: 5, timeout: time.Minute}
	if opts.Queue != "" {
		q.queue = opts.Queue
	}
	if opts.MaxRetry > 0 {
		q.maxRetry = opts.MaxRetry
	}
	if opts.Timeout > 0 {
		q.timeout = opts.Timeout
	}
	return q
}

// Send enqueues msg as a TaskDeliver task.
func (q *QueueSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return oops.Code("MAIL_ENCODE_FAILED").With("kind", msg.Kind).Wrap(err)
	}

	task := asynq.NewTask(TaskDeliver, payload)
	if _, err := q.client.EnqueueContext(ctx, task,
		asynq.Queue(q.queue),
		asynq.MaxRetry(q.maxRetry),
		asynq.Timeout(q.timeout),
	); err != nil {
		return oops.Code("MAIL_ENQUEUE_FAILED").
			With("kind", msg.Kind).
			With("queue", q.queue).
			Wrap(err)
	}
	return nil
}

// decodeTask extracts the Message from a TaskDeliver task.
func decodeTask(task *asynq.Task) (Message, error) {
	var msg Message
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		return Message{}, oops.Code("MAIL_DECODE_FAILED").With("task_type", task.Type()).Wrap(err)
	}
	if msg.To == "" {
		return Message{}, oops.Code("MAIL_DECODE_FAILED").With("task_type", task.Type()).Errorf("message has no recipient")
	}
	return msg, nil
}
