package core

import "container/heap"

// nopEntry is one pending timed no-op (§4.3, corestate.Nop): the thread
// becomes ready again once the core's cycle counter reaches wakeAt.
type nopEntry struct {
	wakeAt int64
	thread int
	seq    int64
}

type nopQueue []*nopEntry

func (q nopQueue) Len() int { return len(q) }
func (q nopQueue) Less(i, j int) bool {
	if q[i].wakeAt != q[j].wakeAt {
		return q[i].wakeAt < q[j].wakeAt
	}
	return q[i].seq < q[j].seq
}
func (q nopQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *nopQueue) Push(x any)   { *q = append(*q, x.(*nopEntry)) }
func (q *nopQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// scheduleNop enqueues threadID's wake-up cyclesRemaining cycles from now.
func (c *Core) scheduleNop(threadID int, cyclesRemaining int64) {
	c.nopSeq++
	heap.Push(&c.nopQ, &nopEntry{wakeAt: c.cycle + cyclesRemaining, thread: threadID, seq: c.nopSeq})
}

// wakeDueNops completes every Nop whose wake cycle has arrived.
func (c *Core) wakeDueNops() {
	for c.nopQ.Len() > 0 && c.nopQ[0].wakeAt <= c.cycle {
		e := heap.Pop(&c.nopQ).(*nopEntry)
		c.Threads[e.thread].State.Complete()
	}
}
