package cache

import (
	"sync"
	"time"

	"github.com/ericpp/thumbs/domain"
)

type mirrorKey struct {
	userID int64
	blogID int64
}

// entry 带逻辑过期的本地镜像项，过期后当作 Unknown 回源
type entry struct {
	status   domain.ThumbStatus
	expireAt time.Time
}

// Mirror is a bounded, process-local shadow of hot like markers.
// 写路径同步更新（写穿透），读路径优先走本地，读不到再退回共享缓存。
// StatusNotLiked 是显式的否定缓存，和"本地没有"是两回事。
type Mirror struct {
	mu         sync.RWMutex
	entries    map[mirrorKey]entry
	maxEntries int
	ttl        time.Duration
}

var _ domain.MirrorCache = (*Mirror)(nil)

func NewMirror(maxEntries int, ttl time.Duration) *Mirror {
	return &Mirror{
		entries:    make(map[mirrorKey]entry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

func (m *Mirror) Get(userID, blogID int64) domain.ThumbStatus {
	m.mu.RLock()
	e, ok := m.entries[mirrorKey{userID, blogID}]
	m.mu.RUnlock()

	if !ok {
		return domain.StatusUnknown
	}
	if time.Now().After(e.expireAt) {
		m.Delete(userID, blogID)
		return domain.StatusUnknown
	}
	return e.status
}

func (m *Mirror) Put(userID, blogID int64, status domain.ThumbStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := mirrorKey{userID, blogID}
	if _, ok := m.entries[key]; !ok && len(m.entries) >= m.maxEntries {
		// 容量满了随便腾一个位置，镜像只是优化，丢哪个都不影响正确性
		for k := range m.entries {
			delete(m.entries, k)
			break
		}
	}
	m.entries[key] = entry{
		status:   status,
		expireAt: time.Now().Add(m.ttl),
	}
}

func (m *Mirror) Delete(userID, blogID int64) {
	m.mu.Lock()
	delete(m.entries, mirrorKey{userID, blogID})
	m.mu.Unlock()
}

// Len 当前镜像条目数，仅用于观测
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
