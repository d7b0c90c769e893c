package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestEntryToMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		entry        rueidis.XRangeEntry
		receiveCount int
		wantID       string
		wantCount    int
	}{
		{
			name: "published entry",
			entry: rueidis.XRangeEntry{
				ID: "1700000000000-0",
				FieldValues: map[string]string{
					fieldMessageID: "6f1c",
					fieldSubject:   "ORDER_CREATED",
					fieldBody:      `{"subject":"ORDER_CREATED","message":"x"}`,
				},
			},
			receiveCount: 2,
			wantID:       "6f1c",
			wantCount:    2,
		},
		{
			name: "foreign entry without message id",
			entry: rueidis.XRangeEntry{
				ID:          "1700000000000-1",
				FieldValues: map[string]string{fieldBody: "{}"},
			},
			receiveCount: 0,
			wantID:       "1700000000000-1",
			wantCount:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := entryToMessage(tt.entry, tt.receiveCount)

			assert.Equal(t, tt.wantID, msg.ID)
			assert.Equal(t, tt.entry.ID, msg.ReceiptHandle)
			assert.Equal(t, tt.entry.FieldValues[fieldBody], msg.Body)
			assert.Equal(t, tt.wantCount, msg.ReceiveCount)
			assert.NotContains(t, msg.Attributes, fieldBody)
		})
	}
}

func TestBlockMillis(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(0), blockMillis(0))
	assert.Equal(t, int64(0), blockMillis(-time.Second))
	assert.Equal(t, int64(1), blockMillis(time.Microsecond))
	assert.Equal(t, int64(20000), blockMillis(20*time.Second))
}

func TestIsBusyGroup(t *testing.T) {
	t.Parallel()

	assert.True(t, isBusyGroup(errors.New("BUSYGROUP Consumer Group name already exists")))
	assert.False(t, isBusyGroup(errors.New("NOGROUP No such key")))
}

const (
	testStream   = "user:notifications"
	testGroup    = "user-service"
	testConsumer = "consumer-1"
)

func newMockStream(t *testing.T) (*StreamClient, *mock.Client) {
	t.Helper()

	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)

	return NewStreamClient(client, testStream, testGroup, testConsumer), client
}

func streamEntry(id, messageID, body string) rueidis.RedisMessage {
	return mock.RedisArray(
		mock.RedisString(id),
		mock.RedisArray(
			mock.RedisString(fieldMessageID), mock.RedisString(messageID),
			mock.RedisString(fieldSubject), mock.RedisString("ORDER_CREATED"),
			mock.RedisString(fieldBody), mock.RedisString(body),
		),
	)
}

// pendingRow is one XPENDING extended-form row: id, owner, idle ms, deliveries.
func pendingRow(id string, deliveries int64) rueidis.RedisMessage {
	return mock.RedisArray(
		mock.RedisString(id),
		mock.RedisString("consumer-2"),
		mock.RedisInt64(45000),
		mock.RedisInt64(deliveries),
	)
}

func readReply(entries ...rueidis.RedisMessage) rueidis.RedisResult {
	return mock.Result(mock.RedisArray(
		mock.RedisArray(mock.RedisString(testStream), mock.RedisArray(entries...)),
	))
}

func TestStreamClient_ReceiveReclaimsStaleEntriesFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, client := newMockStream(t)

	gomock.InOrder(
		client.EXPECT().
			Do(ctx, mock.Match("XPENDING", testStream, testGroup, "IDLE", "30000", "-", "+", "2")).
			Return(mock.Result(mock.RedisArray(pendingRow("1-0", 2)))),
		client.EXPECT().
			Do(ctx, mock.Match("XCLAIM", testStream, testGroup, testConsumer, "30000", "1-0")).
			Return(mock.Result(mock.RedisArray(streamEntry("1-0", "m-1", "stale")))),
		// A reclaimed entry is waiting, so the read does not block.
		client.EXPECT().
			Do(ctx, mock.Match("XREADGROUP", "GROUP", testGroup, testConsumer, "COUNT", "1", "STREAMS", testStream, ">")).
			Return(readReply(streamEntry("2-0", "m-2", "fresh"))),
	)

	msgs, err := s.Receive(ctx, ReceiveOptions{MaxMessages: 2, VisibilityTimeout: 30 * time.Second, WaitTime: 20 * time.Second})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "m-1", msgs[0].ID)
	assert.Equal(t, "1-0", msgs[0].ReceiptHandle)
	assert.Equal(t, "stale", msgs[0].Body)
	assert.Equal(t, 3, msgs[0].ReceiveCount)

	assert.Equal(t, "m-2", msgs[1].ID)
	assert.Equal(t, 1, msgs[1].ReceiveCount)
}

func TestStreamClient_ReceiveFullyReclaimedSkipsRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, client := newMockStream(t)

	gomock.InOrder(
		client.EXPECT().
			Do(ctx, mock.Match("XPENDING", testStream, testGroup, "IDLE", "30000", "-", "+", "2")).
			Return(mock.Result(mock.RedisArray(pendingRow("1-0", 1), pendingRow("1-1", 4)))),
		client.EXPECT().
			Do(ctx, mock.Match("XCLAIM", testStream, testGroup, testConsumer, "30000", "1-0", "1-1")).
			Return(mock.Result(mock.RedisArray(
				streamEntry("1-0", "m-1", "a"),
				streamEntry("1-1", "m-2", "b"),
			))),
	)

	msgs, err := s.Receive(ctx, ReceiveOptions{MaxMessages: 2, VisibilityTimeout: 30 * time.Second, WaitTime: 20 * time.Second})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, 2, msgs[0].ReceiveCount)
	assert.Equal(t, 5, msgs[1].ReceiveCount)
}

func TestStreamClient_ReceiveBlocksWhenNothingPending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, client := newMockStream(t)

	gomock.InOrder(
		client.EXPECT().
			Do(ctx, mock.Match("XPENDING", testStream, testGroup, "IDLE", "30000", "-", "+", "10")).
			Return(mock.Result(mock.RedisArray())),
		client.EXPECT().
			Do(ctx, mock.Match("XREADGROUP", "GROUP", testGroup, testConsumer, "COUNT", "10", "BLOCK", "20000", "STREAMS", testStream, ">")).
			Return(readReply(streamEntry("3-0", "m-3", "new"))),
	)

	msgs, err := s.Receive(ctx, ReceiveOptions{MaxMessages: 10, VisibilityTimeout: 30 * time.Second, WaitTime: 20 * time.Second})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m-3", msgs[0].ID)
	assert.Equal(t, 1, msgs[0].ReceiveCount)
}

func TestStreamClient_ReceiveTimeoutIsEmptyBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, client := newMockStream(t)

	gomock.InOrder(
		client.EXPECT().
			Do(ctx, mock.Match("XPENDING", testStream, testGroup, "IDLE", "30000", "-", "+", "10")).
			Return(mock.Result(mock.RedisArray())),
		client.EXPECT().
			Do(ctx, mock.Match("XREADGROUP", "GROUP", testGroup, testConsumer, "COUNT", "10", "BLOCK", "20000", "STREAMS", testStream, ">")).
			Return(mock.Result(mock.RedisNil())),
	)

	msgs, err := s.Receive(ctx, ReceiveOptions{MaxMessages: 10, VisibilityTimeout: 30 * time.Second, WaitTime: 20 * time.Second})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStreamClient_ReceivePendingError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, client := newMockStream(t)

	client.EXPECT().
		Do(ctx, mock.Match("XPENDING", testStream, testGroup, "IDLE", "30000", "-", "+", "10")).
		Return(mock.ErrorResult(errors.New("connection refused")))

	_, err := s.Receive(ctx, ReceiveOptions{MaxMessages: 10, VisibilityTimeout: 30 * time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xpending")
}

func TestStreamClient_DeleteAcksThenDeletes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, client := newMockStream(t)

	gomock.InOrder(
		client.EXPECT().
			Do(ctx, mock.Match("XACK", testStream, testGroup, "1-0")).
			Return(mock.Result(mock.RedisInt64(1))),
		client.EXPECT().
			Do(ctx, mock.Match("XDEL", testStream, "1-0")).
			Return(mock.Result(mock.RedisInt64(1))),
	)

	require.NoError(t, s.Delete(ctx, "1-0"))
}

func TestStreamClient_DeleteStopsOnAckError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, client := newMockStream(t)

	// No XDEL is expected: the controller fails the test if one is sent.
	client.EXPECT().
		Do(ctx, mock.Match("XACK", testStream, testGroup, "1-0")).
		Return(mock.ErrorResult(errors.New("NOGROUP No such key")))

	err := s.Delete(ctx, "1-0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xack 1-0")
}

func TestStreamClient_EnsureGroupToleratesExistingGroup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, client := newMockStream(t)

	client.EXPECT().
		Do(ctx, mock.Match("XGROUP", "CREATE", testStream, testGroup, "0", "MKSTREAM")).
		Return(mock.Result(mock.RedisError("BUSYGROUP Consumer Group name already exists")))

	require.NoError(t, s.EnsureGroup(ctx))
}
