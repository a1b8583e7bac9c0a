package redis

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ericpp/thumbs/domain"
)

const (
	// KeyEventStream 分区事件流，同一个 (userId, blogId) 固定落在同一分区，
	// 单个消费者按序消费一个分区，奇偶归并规则才成立
	KeyEventStream = "thumb:events:%d"
	// KeyDeadLetterStream 超过重投预算的消息归档到这里，等人工处理
	KeyDeadLetterStream = "thumb:events:dlq"

	ConsumerGroup = "thumb-consumers"

	// streamMaxLen 流的近似截断长度
	streamMaxLen = 100000

	pollBlock = 2 * time.Second
)

// eventBroker 基于 Redis Streams 的事件管道：
// 消费组实现竞争消费，pending 列表给未确认消息兜底重投。
type eventBroker struct {
	client     *redis.Client
	partitions int
	consumer   string
}

var _ domain.EventBroker = (*eventBroker)(nil)

func NewEventBroker(client *redis.Client, partitions int, consumer string) *eventBroker {
	return &eventBroker{
		client:     client,
		partitions: partitions,
		consumer:   consumer,
	}
}

// EnsureGroups 建出每个分区的流和消费组，已存在时忽略
func (b *eventBroker) EnsureGroups(ctx context.Context) error {
	for p := range b.partitions {
		err := b.client.XGroupCreateMkStream(ctx, b.streamKey(p), ConsumerGroup, "0").Err()
		if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return err
		}
	}
	return nil
}

func (b *eventBroker) Partitions() int {
	return b.partitions
}

func (b *eventBroker) streamKey(partition int) string {
	return fmt.Sprintf(KeyEventStream, partition)
}

// partitionOf 按键哈希路由，保证同键有序
func (b *eventBroker) partitionOf(userID, blogID int64) int {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%d", userID, blogID)
	return int(h.Sum64() % uint64(b.partitions))
}

func (b *eventBroker) Publish(ctx context.Context, ev domain.ToggleEvent) error {
	p := b.partitionOf(ev.UserID, ev.BlogID)
	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.streamKey(p),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: eventValues(ev),
	}).Err()
}

func (b *eventBroker) ReceiveBatch(ctx context.Context, partition int, max int64) ([]domain.EventMessage, error) {
	res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: b.consumer,
		Streams:  []string{b.streamKey(partition), ">"},
		Count:    max,
		Block:    pollBlock,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var msgs []domain.EventMessage
	for _, stream := range res {
		for _, m := range stream.Messages {
			ev, err := eventFromValues(m.Values)
			if err != nil {
				// 无法解析的消息直接丢弃并确认，不要卡住整个分区
				logrus.Warnf("dropping malformed event %s: %v", m.ID, err)
				_ = b.Ack(ctx, partition, m.ID)
				continue
			}
			msgs = append(msgs, domain.EventMessage{
				ID:         m.ID,
				Partition:  partition,
				Deliveries: 1,
				Event:      ev,
			})
		}
	}
	return msgs, nil
}

// Reclaim 捞出超时未确认的消息重投，Deliveries 带上 pending 里的真实投递次数
func (b *eventBroker) Reclaim(ctx context.Context, partition int, minIdle time.Duration, max int64) ([]domain.EventMessage, error) {
	pending, err := b.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: b.streamKey(partition),
		Group:  ConsumerGroup,
		Idle:   minIdle,
		Start:  "-",
		End:    "+",
		Count:  max,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ids := make([]string, len(pending))
	retries := make(map[string]int64, len(pending))
	for i, p := range pending {
		ids[i] = p.ID
		retries[p.ID] = p.RetryCount
	}

	claimed, err := b.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   b.streamKey(partition),
		Group:    ConsumerGroup,
		Consumer: b.consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, err
	}

	var msgs []domain.EventMessage
	for _, m := range claimed {
		ev, err := eventFromValues(m.Values)
		if err != nil {
			logrus.Warnf("dropping malformed pending event %s: %v", m.ID, err)
			_ = b.Ack(ctx, partition, m.ID)
			continue
		}
		msgs = append(msgs, domain.EventMessage{
			ID:         m.ID,
			Partition:  partition,
			Deliveries: retries[m.ID] + 1,
			Event:      ev,
		})
	}
	return msgs, nil
}

func (b *eventBroker) Ack(ctx context.Context, partition int, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return b.client.XAck(ctx, b.streamKey(partition), ConsumerGroup, ids...).Err()
}

// DeadLetter 把消息转入死信流并确认原消息，两步尽力而为
func (b *eventBroker) DeadLetter(ctx context.Context, msg domain.EventMessage) error {
	values := eventValues(msg.Event)
	values["origin_id"] = msg.ID
	values["deliveries"] = msg.Deliveries
	if err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: KeyDeadLetterStream,
		Values: values,
	}).Err(); err != nil {
		return err
	}
	return b.Ack(ctx, msg.Partition, msg.ID)
}

func eventValues(ev domain.ToggleEvent) map[string]any {
	return map[string]any{
		"user_id":    ev.UserID,
		"blog_id":    ev.BlogID,
		"type":       string(ev.Type),
		"event_time": ev.EventTime.UnixMilli(),
	}
}

func eventFromValues(values map[string]any) (domain.ToggleEvent, error) {
	userID, err := int64Value(values, "user_id")
	if err != nil {
		return domain.ToggleEvent{}, err
	}
	blogID, err := int64Value(values, "blog_id")
	if err != nil {
		return domain.ToggleEvent{}, err
	}
	millis, err := int64Value(values, "event_time")
	if err != nil {
		return domain.ToggleEvent{}, err
	}

	typStr, _ := values["type"].(string)
	typ := domain.EventType(typStr)
	if typ != domain.EventIncr && typ != domain.EventDecr {
		return domain.ToggleEvent{}, fmt.Errorf("unknown event type %q", typStr)
	}

	return domain.ToggleEvent{
		UserID:    userID,
		BlogID:    blogID,
		Type:      typ,
		EventTime: time.UnixMilli(millis),
	}, nil
}

func int64Value(values map[string]any, key string) (int64, error) {
	str, ok := values[key].(string)
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	return strconv.ParseInt(str, 10, 64)
}
