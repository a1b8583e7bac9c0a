package workers

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ericpp/thumbs/domain"
	"github.com/ericpp/thumbs/internal/retry"
)

type ConsumerConfig struct {
	// BatchSize 单次最多取多少条消息
	BatchSize int64
	// MaxDeliveries 投递超过这个次数的消息进死信流
	MaxDeliveries int64
	// AckTimeout 消息未确认多久后允许被重新认领（消费者崩溃兜底）
	AckTimeout time.Duration
	// NackBackoff 落库失败后的退避策略
	NackBackoff retry.Policy
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		BatchSize:     100,
		MaxDeliveries: 5,
		AckTimeout:    30 * time.Second,
		NackBackoff: retry.Policy{
			MaxAttempts:    5,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
	}
}

// ThumbConsumer 批量消费点赞事件并落库。
// 每个分区一个 goroutine 顺序消费，保证同一 (userId, blogId) 的事件有序，
// 奇偶归并规则依赖这一点。
type ThumbConsumer struct {
	broker    domain.EventBroker
	thumbRepo domain.ThumbDBRepository
	cfg       ConsumerConfig
}

func NewThumbConsumer(broker domain.EventBroker, thumbRepo domain.ThumbDBRepository, cfg ConsumerConfig) *ThumbConsumer {
	return &ThumbConsumer{
		broker:    broker,
		thumbRepo: thumbRepo,
		cfg:       cfg,
	}
}

func (c *ThumbConsumer) Start(ctx context.Context) {
	for p := range c.broker.Partitions() {
		go c.consumePartition(ctx, p)
	}
}

func (c *ThumbConsumer) consumePartition(ctx context.Context, partition int) {
	failures := 0
	for {
		select {
		case <-ctx.Done():
			logrus.Infof("shutting down thumb consumer, partition %d", partition)
			return
		default:
		}

		msgs, err := c.nextBatch(ctx, partition)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logrus.Errorf("failed to receive batch, partition %d: %v", partition, err)
			time.Sleep(c.cfg.NackBackoff.InitialBackoff)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		if err := c.ProcessBatch(ctx, msgs); err != nil {
			// 整批不确认，退避后消息经 pending 列表重投
			failures++
			backoff := c.cfg.NackBackoff.Backoff(failures)
			logrus.Errorf("failed to apply batch of %d, partition %d (failure %d, backing off %s): %v",
				len(msgs), partition, failures, backoff, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			continue
		}
		failures = 0
	}
}

// nextBatch 先认领超时未确认的旧消息，没有再拉新消息
func (c *ThumbConsumer) nextBatch(ctx context.Context, partition int) ([]domain.EventMessage, error) {
	msgs, err := c.broker.Reclaim(ctx, partition, c.cfg.AckTimeout, c.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 {
		return msgs, nil
	}
	return c.broker.ReceiveBatch(ctx, partition, c.cfg.BatchSize)
}

// ProcessBatch applies one batch as a single transactional unit.
// 重投预算用尽的消息先转死信，剩下的归并出净效果后一次事务落库，
// 全部成功才逐条确认。
func (c *ThumbConsumer) ProcessBatch(ctx context.Context, msgs []domain.EventMessage) error {
	live := make([]domain.EventMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Deliveries > c.cfg.MaxDeliveries {
			logrus.Warnf("dead-lettering event %s after %d deliveries", msg.ID, msg.Deliveries)
			if err := c.broker.DeadLetter(ctx, msg); err != nil {
				logrus.Errorf("failed to dead-letter event %s: %v", msg.ID, err)
			}
			continue
		}
		live = append(live, msg)
	}
	if len(live) == 0 {
		return nil
	}

	events := make([]domain.ToggleEvent, len(live))
	for i, msg := range live {
		events[i] = msg.Event
	}

	changes := NetEffect(events)
	if err := c.thumbRepo.ApplyToggleChanges(ctx, changes); err != nil {
		return err
	}

	partition := live[0].Partition
	ids := make([]string, len(live))
	for i, msg := range live {
		ids[i] = msg.ID
	}
	return c.broker.Ack(ctx, partition, ids...)
}

type eventKey struct {
	userID int64
	blogID int64
}

// NetEffect 把一批事件归并成净效果。
// 同键事件按时间升序排列后：偶数个代表点赞又取消，相互抵消，整组丢弃；
// 奇数个净效果恰好等于最后一条事件（上游网关保证同键事件严格交替）。
func NetEffect(events []domain.ToggleEvent) domain.ToggleChanges {
	groups := make(map[eventKey][]domain.ToggleEvent)
	for _, ev := range events {
		key := eventKey{ev.UserID, ev.BlogID}
		groups[key] = append(groups[key], ev)
	}

	changes := domain.ToggleChanges{
		CountDeltas: make(map[int64]int64),
	}
	for key, group := range groups {
		if len(group)%2 == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].EventTime.Before(group[j].EventTime)
		})
		last := group[len(group)-1]

		switch last.Type {
		case domain.EventIncr:
			changes.CountDeltas[key.blogID]++
			changes.ToInsert = append(changes.ToInsert, domain.ThumbRecord{
				UserID:    key.userID,
				BlogID:    key.blogID,
				CreatedAt: last.EventTime,
			})
		case domain.EventDecr:
			changes.CountDeltas[key.blogID]--
			changes.ToRemove = append(changes.ToRemove, domain.ThumbRecord{
				UserID: key.userID,
				BlogID: key.blogID,
			})
		}
	}

	// 全抵消的博客不该出现在批量更新语句里
	for blogID, delta := range changes.CountDeltas {
		if delta == 0 {
			delete(changes.CountDeltas, blogID)
		}
	}

	return changes
}
