package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/xaenox/botchat/internal/models"
)

// Queue holds pending speak intents ordered by due time. A bot has at most
// one pending item at any moment.
type Queue struct {
	mu      sync.Mutex
	items   itemHeap
	pending map[string]struct{}
}

func NewQueue() *Queue {
	return &Queue{pending: make(map[string]struct{})}
}

// Push enqueues item unless its bot already has a pending item.
func (q *Queue) Push(item models.ScheduledItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.pending[item.BotID]; ok {
		return false
	}
	q.pending[item.BotID] = struct{}{}
	heap.Push(&q.items, item)
	return true
}

// PopDue removes and returns every item due at or before now, earliest first.
func (q *Queue) PopDue(now time.Time) []models.ScheduledItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []models.ScheduledItem
	for q.items.Len() > 0 && !q.items[0].Due.After(now) {
		item := heap.Pop(&q.items).(models.ScheduledItem)
		delete(q.pending, item.BotID)
		due = append(due, item)
	}
	return due
}

func (q *Queue) Pending(botID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.pending[botID]
	return ok
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.items.Len()
}

// Items returns a copy of the queue in due order.
func (q *Queue) Items() []models.ScheduledItem {
	q.mu.Lock()
	cp := make(itemHeap, len(q.items))
	copy(cp, q.items)
	q.mu.Unlock()

	out := make([]models.ScheduledItem, 0, len(cp))
	for cp.Len() > 0 {
		out = append(out, heap.Pop(&cp).(models.ScheduledItem))
	}
	return out
}

func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = nil
	q.pending = make(map[string]struct{})
}

type itemHeap []models.ScheduledItem

func (h itemHeap) Len() int           { return len(h) }
func (h itemHeap) Less(i, j int) bool { return h[i].Due.Before(h[j].Due) }
func (h itemHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(models.ScheduledItem)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
