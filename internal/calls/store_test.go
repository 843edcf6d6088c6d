package calls

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	puts  []*dynamodb.PutItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, in)
	key := in.Item["roomId"].(*types.AttributeValueMemberS).Value
	if cond := aws.ToString(in.ConditionExpression); strings.Contains(cond, "attribute_not_exists") {
		if _, ok := f.items[key]; ok {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := in.Key["roomId"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[key]}, nil
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "coaching-missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	sess := NewCallSession("coaching-1", "job-1", "+15550001234", fixedNow)
	require.NoError(t, store.Create(ctx, sess))
	assert.ErrorIs(t, store.Create(ctx, NewCallSession("coaching-1", "job-2", "", fixedNow)), ErrSessionExists)

	require.NoError(t, sess.Transition(StateDialing, fixedNow))
	require.NoError(t, sess.Transition(StateConnected, fixedNow))
	require.NoError(t, sess.SetRecording("EG_1", "recordings/a.mp4"))
	require.NoError(t, sess.Transition(StateRecording, fixedNow))
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "coaching-1")
	require.NoError(t, err)
	assert.Equal(t, StateRecording, got.State)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, "EG_1", got.RecordingID)
	assert.Len(t, got.History, 3)
	assert.True(t, got.StartedAt.Equal(fixedNow))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	sess := NewCallSession("coaching-1", "job-1", "", fixedNow)
	require.NoError(t, store.Create(context.Background(), sess))

	got, err := store.Get(context.Background(), "coaching-1")
	require.NoError(t, err)
	got.State = StateClosed

	again, err := store.Get(context.Background(), "coaching-1")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, again.State)
}

func TestRedisStore(t *testing.T) {
	mr, rdb := newRedis(t)
	exerciseStore(t, NewRedisStore(rdb))

	assert.True(t, mr.Exists("calls:session:coaching-1"))
	assert.InDelta(t, sessionTTL.Seconds(), mr.TTL("calls:session:coaching-1").Seconds(), 1)

	mr.FastForward(sessionTTL + time.Second)
	_, err := NewRedisStore(rdb).Get(context.Background(), "coaching-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDynamoStore(t *testing.T) {
	client := newFakeDynamo()
	exerciseStore(t, NewDynamoStore(client, "call_sessions"))

	require.NotEmpty(t, client.puts)
	first := client.puts[0]
	assert.Equal(t, "call_sessions", aws.ToString(first.TableName))
	assert.Equal(t, "attribute_not_exists(roomId)", aws.ToString(first.ConditionExpression))
	expires, ok := first.Item["expiresAt"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.NotEmpty(t, expires.Value)
}

func TestDynamoStorePanicsWithoutTable(t *testing.T) {
	assert.Panics(t, func() { NewDynamoStore(newFakeDynamo(), "") })
	assert.Panics(t, func() { NewDynamoStore(nil, "t") })
}
