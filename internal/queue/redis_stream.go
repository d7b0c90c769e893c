package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
)

// Stream entry fields.
const (
	fieldBody      = "body"
	fieldSubject   = "subject"
	fieldMessageID = "message_id"
)

// StreamClient implements Client and Publisher on a Redis Stream read through
// a consumer group. Pending entries idle longer than the visibility timeout
// are claimed again, which gives SQS-like redelivery.
type StreamClient struct {
	client   rueidis.Client
	stream   string
	group    string
	consumer string
}

// NewStreamClient creates a StreamClient. Call EnsureGroup before Receive.
func NewStreamClient(client rueidis.Client, stream, group, consumer string) *StreamClient {
	return &StreamClient{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
	}
}

// EnsureGroup creates the stream and consumer group when missing.
func (s *StreamClient) EnsureGroup(ctx context.Context) error {
	cmd := s.client.B().XgroupCreate().Key(s.stream).Group(s.group).Id("0").Mkstream().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil && !isBusyGroup(err) {
		return fmt.Errorf("redis: create group %s: %w", s.group, err)
	}

	return nil
}

// Receive returns reclaimed stale entries first, then new entries.
func (s *StreamClient) Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	messages, err := s.reclaim(ctx, opts)
	if err != nil {
		return nil, err
	}

	remaining := opts.MaxMessages - len(messages)
	if remaining <= 0 {
		return messages, nil
	}

	// Do not block when reclaimed entries are already waiting to be handled.
	wait := opts.WaitTime
	if len(messages) > 0 {
		wait = 0
	}

	fresh, err := s.read(ctx, remaining, wait)
	if err != nil {
		return nil, err
	}

	return append(messages, fresh...), nil
}

func (s *StreamClient) read(ctx context.Context, count int, wait time.Duration) ([]Message, error) {
	var cmd rueidis.Completed
	if ms := blockMillis(wait); ms > 0 {
		cmd = s.client.B().Xreadgroup().Group(s.group, s.consumer).
			Count(int64(count)).
			Block(ms).
			Streams().
			Key(s.stream).
			Id(">").
			Build()
	} else {
		cmd = s.client.B().Xreadgroup().Group(s.group, s.consumer).
			Count(int64(count)).
			Streams().
			Key(s.stream).
			Id(">").
			Build()
	}

	streams, err := s.client.Do(ctx, cmd).AsXRead()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("redis: xreadgroup: %w", err)
	}

	entries := streams[s.stream]
	messages := make([]Message, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, entryToMessage(e, 1))
	}

	return messages, nil
}

// reclaim claims entries that were delivered but not acknowledged within
// the visibility timeout.
func (s *StreamClient) reclaim(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	idle := strconv.FormatInt(opts.VisibilityTimeout.Milliseconds(), 10)

	pendingCmd := s.client.B().Arbitrary("XPENDING").Keys(s.stream).
		Args(s.group, "IDLE", idle, "-", "+", strconv.Itoa(opts.MaxMessages)).
		Build()

	rows, err := s.client.Do(ctx, pendingCmd).ToArray()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("redis: xpending: %w", err)
	}

	deliveries := make(map[string]int, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		fields, err := row.ToArray()
		if err != nil || len(fields) < 4 {
			continue
		}
		id, err := fields[0].ToString()
		if err != nil {
			continue
		}
		n, _ := fields[3].AsInt64()
		deliveries[id] = int(n)
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	claimCmd := s.client.B().Arbitrary("XCLAIM").Keys(s.stream).
		Args(append([]string{s.group, s.consumer, idle}, ids...)...).
		Build()

	entries, err := s.client.Do(ctx, claimCmd).AsXRange()
	if err != nil {
		return nil, fmt.Errorf("redis: xclaim: %w", err)
	}

	messages := make([]Message, 0, len(entries))
	for _, e := range entries {
		// XCLAIM increments the delivery counter.
		messages = append(messages, entryToMessage(e, deliveries[e.ID]+1))
	}

	return messages, nil
}

// Delete acknowledges and removes the entry. The receipt handle is the entry id.
func (s *StreamClient) Delete(ctx context.Context, receiptHandle string) error {
	ack := s.client.B().Xack().Key(s.stream).Group(s.group).Id(receiptHandle).Build()
	if err := s.client.Do(ctx, ack).Error(); err != nil {
		return fmt.Errorf("redis: xack %s: %w", receiptHandle, err)
	}

	del := s.client.B().Xdel().Key(s.stream).Id(receiptHandle).Build()
	if err := s.client.Do(ctx, del).Error(); err != nil {
		return fmt.Errorf("redis: xdel %s: %w", receiptHandle, err)
	}

	return nil
}

// Publish appends an entry and returns the generated message id.
func (s *StreamClient) Publish(ctx context.Context, subject, body string) (string, error) {
	messageID := uuid.NewString()

	cmd := s.client.B().Xadd().Key(s.stream).Id("*").
		FieldValue().
		FieldValue(fieldMessageID, messageID).
		FieldValue(fieldSubject, subject).
		FieldValue(fieldBody, body).
		Build()

	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return "", fmt.Errorf("redis: xadd: %w", err)
	}

	return messageID, nil
}

// entryToMessage maps a stream entry to a Message. The logical id is the
// published message_id when present, so redeliveries share it.
func entryToMessage(e rueidis.XRangeEntry, receiveCount int) Message {
	msg := Message{
		ID:            e.ID,
		ReceiptHandle: e.ID,
		Body:          e.FieldValues[fieldBody],
		ReceiveCount:  max(receiveCount, 1),
		Attributes:    make(map[string]string, len(e.FieldValues)),
	}

	if id := e.FieldValues[fieldMessageID]; id != "" {
		msg.ID = id
	}

	for k, v := range e.FieldValues {
		if k != fieldBody {
			msg.Attributes[k] = v
		}
	}

	return msg
}

// blockMillis converts a wait time to an XREADGROUP BLOCK argument.
// Zero means do not block; BLOCK 0 would block forever.
func blockMillis(wait time.Duration) int64 {
	if wait <= 0 {
		return 0
	}

	return max(wait.Milliseconds(), 1)
}

func isBusyGroup(err error) bool {
	return strings.Contains(err.Error(), "BUSYGROUP")
}
