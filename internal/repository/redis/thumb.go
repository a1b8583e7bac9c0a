package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ericpp/thumbs/domain"
)

const (
	// KeyUserThumbs 用户点赞标记 hash，field=博客ID，value=过期时间戳(毫秒)
	KeyUserThumbs = "thumb:%d"
	// KeyTempThumbs 临时计数 hash，按10秒时间片分桶，field="userId:blogId"
	KeyTempThumbs = "thumb:temp:%s"

	scanCount = 1000
)

// 点赞脚本。检查与写入在一次求值里完成，并发的同键请求不可能都看到"未点赞"。
// KEYS[1] 临时计数键  KEYS[2] 用户标记键
// ARGV[1] userId  ARGV[2] blogId  ARGV[3] 过期时间戳(毫秒)
// 返回 -1 已点赞，1 成功
var thumbScript = redis.NewScript(`
	if redis.call('HEXISTS', KEYS[2], ARGV[2]) == 1 then
		return -1
	end

	local hashKey = ARGV[1] .. ':' .. ARGV[2]
	local old = tonumber(redis.call('HGET', KEYS[1], hashKey) or 0)
	redis.call('HSET', KEYS[1], hashKey, old + 1)
	redis.call('HSET', KEYS[2], ARGV[2], ARGV[3])

	return 1
`)

// 取消点赞脚本，参数同上（不需要过期时间）
// 返回 -1 未点赞，1 成功
var unthumbScript = redis.NewScript(`
	if redis.call('HEXISTS', KEYS[2], ARGV[2]) ~= 1 then
		return -1
	end

	local hashKey = ARGV[1] .. ':' .. ARGV[2]
	local old = tonumber(redis.call('HGET', KEYS[1], hashKey) or 0)
	redis.call('HSET', KEYS[1], hashKey, old - 1)
	redis.call('HDEL', KEYS[2], ARGV[2])

	return 1
`)

type thumbCache struct {
	client *redis.Client
}

var _ domain.ThumbCache = (*thumbCache)(nil)

func NewThumbCache(client *redis.Client) *thumbCache {
	return &thumbCache{
		client,
	}
}

// timeSlice 取当前时间往前最近的10秒整，比如 11:20:23 -> "11:20:20"
func timeSlice(now time.Time) string {
	return fmt.Sprintf("%s%d", now.Format("15:04:"), now.Second()/10*10)
}

func userThumbKey(userID int64) string {
	return fmt.Sprintf(KeyUserThumbs, userID)
}

func (c *thumbCache) AddMarker(ctx context.Context, userID, blogID int64, expireAt time.Time) error {
	keys := []string{
		fmt.Sprintf(KeyTempThumbs, timeSlice(time.Now())),
		userThumbKey(userID),
	}
	res, err := thumbScript.Run(ctx, c.client, keys, userID, blogID, expireAt.UnixMilli()).Int()
	if err != nil {
		return err
	}
	if res == -1 {
		return domain.ErrAlreadyLiked
	}
	return nil
}

func (c *thumbCache) RemoveMarker(ctx context.Context, userID, blogID int64) error {
	keys := []string{
		fmt.Sprintf(KeyTempThumbs, timeSlice(time.Now())),
		userThumbKey(userID),
	}
	res, err := unthumbScript.Run(ctx, c.client, keys, userID, blogID).Int()
	if err != nil {
		return err
	}
	if res == -1 {
		return domain.ErrNotLiked
	}
	return nil
}

func (c *thumbCache) GetMarker(ctx context.Context, userID, blogID int64) (time.Time, error) {
	val, err := c.client.HGet(ctx, userThumbKey(userID), strconv.FormatInt(blogID, 10)).Result()
	if err == redis.Nil {
		return time.Time{}, domain.ErrCacheMiss
	}
	if err != nil {
		return time.Time{}, err
	}
	millis, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid marker value %q: %w", val, err)
	}
	return time.UnixMilli(millis), nil
}

func (c *thumbCache) GetMarkers(ctx context.Context, userID int64, blogIDs []int64) (map[int64]time.Time, error) {
	if len(blogIDs) == 0 {
		return nil, nil
	}
	fields := make([]string, len(blogIDs))
	for i, id := range blogIDs {
		fields[i] = strconv.FormatInt(id, 10)
	}

	vals, err := c.client.HMGet(ctx, userThumbKey(userID), fields...).Result()
	if err != nil {
		return nil, err
	}

	res := make(map[int64]time.Time)
	for i, val := range vals {
		if val == nil {
			continue
		}
		str, ok := val.(string)
		if !ok {
			continue
		}
		millis, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			continue
		}
		res[blogIDs[i]] = time.UnixMilli(millis)
	}
	return res, nil
}

func (c *thumbCache) DeleteMarker(ctx context.Context, userID, blogID int64) error {
	return c.client.HDel(ctx, userThumbKey(userID), strconv.FormatInt(blogID, 10)).Err()
}

func (c *thumbCache) RestoreMarker(ctx context.Context, userID, blogID int64, expireAt time.Time) error {
	return c.client.HSet(ctx, userThumbKey(userID), strconv.FormatInt(blogID, 10), expireAt.UnixMilli()).Err()
}

// ScanMarkerUsers 遍历所有 thumb:{userId} 键。thumb:temp:* 也会匹配到，
// 后缀解析失败的直接跳过。
func (c *thumbCache) ScanMarkerUsers(ctx context.Context) ([]int64, error) {
	var (
		userIDs []int64
		cursor  uint64
	)
	prefixLen := len("thumb:")
	for {
		keys, next, err := c.client.Scan(ctx, cursor, "thumb:*", scanCount).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			uid, err := strconv.ParseInt(key[prefixLen:], 10, 64)
			if err != nil {
				continue
			}
			userIDs = append(userIDs, uid)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return userIDs, nil
}

func (c *thumbCache) MarkedBlogIDs(ctx context.Context, userID int64) ([]int64, error) {
	fields, err := c.client.HKeys(ctx, userThumbKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
