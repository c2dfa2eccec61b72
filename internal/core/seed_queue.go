package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

var (
	// ErrQueueClosed 队列已关闭
	ErrQueueClosed = errors.New("队列已关闭")
	// ErrDepthExceeded 超过最大遍历深度
	ErrDepthExceeded = errors.New("深度超过限制")
	// ErrAlreadySeen 标识已入队或已处理
	ErrAlreadySeen = errors.New("标识已入队或已处理")
)

// SeedQueue 作者标识队列
// 职责: 按发现顺序(FIFO)管理待处理标识,并记录每个标识的遍历状态,
// 保证同一次遍历中每个标识最多处理一次
type SeedQueue struct {
	// 待处理标识
	pending []models.SeedItem

	// 标识状态,未出现的标识为UNVISITED
	states map[string]models.VisitState

	// 已入队但尚未出队的标识
	queued map[string]bool

	// 保护以上字段的读写锁
	mu sync.RWMutex

	// 最大遍历深度
	maxDepth int

	// 队列是否已关闭
	closed bool
}

// NewSeedQueue 创建标识队列
func NewSeedQueue(maxDepth int) *SeedQueue {
	return &SeedQueue{
		pending:  make([]models.SeedItem, 0),
		states:   make(map[string]models.VisitState),
		queued:   make(map[string]bool),
		maxDepth: maxDepth,
	}
}

// normalizeSeed 标识比较时忽略首尾空白
func normalizeSeed(id string) string {
	return strings.TrimSpace(id)
}

// Push 添加标识到队列
// 只有深度不超过上限且状态为UNVISITED、尚未入队的标识会被接受
func (q *SeedQueue) Push(item models.SeedItem) error {
	item.ID = normalizeSeed(item.ID)
	if item.ID == "" {
		return fmt.Errorf("标识为空")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	// 检查深度限制
	if item.Depth > q.maxDepth {
		return fmt.Errorf("%w: %d > %d", ErrDepthExceeded, item.Depth, q.maxDepth)
	}

	// 检查是否已访问或已入队
	if q.stateLocked(item.ID) != models.StateUnvisited || q.queued[item.ID] {
		return fmt.Errorf("%w: %s", ErrAlreadySeen, item.ID)
	}

	q.pending = append(q.pending, item)
	q.queued[item.ID] = true
	return nil
}

// Pop 从队列中取出下一个标识
// 入队后已被其他途径处理的标识(如按姓名解析到的同一作者)直接跳过
// 队列为空、已关闭或ctx取消时返回false
func (q *SeedQueue) Pop(ctx context.Context) (models.SeedItem, bool) {
	if ctx.Err() != nil {
		return models.SeedItem{}, false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && len(q.pending) > 0 {
		item := q.pending[0]
		q.pending = q.pending[1:]
		delete(q.queued, item.ID)
		if q.stateLocked(item.ID) == models.StateUnvisited {
			return item, true
		}
	}
	return models.SeedItem{}, false
}

// SetState 更新标识状态
func (q *SeedQueue) SetState(id string, state models.VisitState) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.states[normalizeSeed(id)] = state
}

// State 返回标识状态
func (q *SeedQueue) State(id string) models.VisitState {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.stateLocked(normalizeSeed(id))
}

func (q *SeedQueue) stateLocked(id string) models.VisitState {
	if s, ok := q.states[id]; ok {
		return s
	}
	return models.StateUnvisited
}

// IsVisited 标识是否已开始处理
func (q *SeedQueue) IsVisited(id string) bool {
	return q.State(id) != models.StateUnvisited
}

// Identifiers 返回处于指定状态的标识
func (q *SeedQueue) Identifiers(state models.VisitState) []string {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ids := make([]string, 0)
	for id, s := range q.states {
		if s == state {
			ids = append(ids, id)
		}
	}
	return ids
}

// Pending 返回待处理标识快照(按出队顺序)
func (q *SeedQueue) Pending() []models.SeedItem {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]models.SeedItem, len(q.pending))
	copy(out, q.pending)
	return out
}

// PendingCount 返回当前待处理标识数量
func (q *SeedQueue) PendingCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pending)
}

// Close 关闭队列,后续Push返回ErrQueueClosed,Pop返回false
func (q *SeedQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
