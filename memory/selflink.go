package memory

import "container/heap"

// SelfLinkBackend is the self-link fixed-latency backing (§4.5): a request
// is enqueued on a self-directed event with a configurable delay, then
// completed. "Self-directed" here means the owning core's own per-cycle
// Advance call drives completion — there is no separate link component to
// model, matching the teacher's single-threaded-per-core tick loop.
type SelfLinkBackend struct {
	Router *Router
	Delay  int64 // cycles between submit and completion

	now      int64
	queue    pendingQueue
	seqCount int64
}

// NewSelfLinkBackend creates a backend that completes every request Delay
// cycles after it is submitted.
func NewSelfLinkBackend(router *Router, delay int64) *SelfLinkBackend {
	return &SelfLinkBackend{Router: router, Delay: delay}
}

type pendingRequest struct {
	completeAt int64
	req        Request
	seq        int64 // tie-break to keep FIFO order among same-cycle completions
}

type pendingQueue []*pendingRequest

func (q pendingQueue) Len() int { return len(q) }
func (q pendingQueue) Less(i, j int) bool {
	if q[i].completeAt != q[j].completeAt {
		return q[i].completeAt < q[j].completeAt
	}
	return q[i].seq < q[j].seq
}
func (q pendingQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *pendingQueue) Push(x any)   { *q = append(*q, x.(*pendingRequest)) }
func (q *pendingQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Submit implements Backend: it schedules completion Delay cycles out
// rather than running the request immediately.
func (b *SelfLinkBackend) Submit(req Request) {
	b.seqCount++
	heap.Push(&b.queue, &pendingRequest{
		completeAt: b.now + b.Delay,
		req:        req,
		seq:        b.seqCount,
	})
}

// Advance moves the backend's clock to now and completes every request
// whose delay has elapsed, in the FIFO order they were submitted among
// ties (§4.3 "Threads enter the ready queue FIFO in the order their
// completion events fire").
func (b *SelfLinkBackend) Advance(now int64) {
	b.now = now
	for b.queue.Len() > 0 && b.queue[0].completeAt <= now {
		item := heap.Pop(&b.queue).(*pendingRequest)
		result := execute(b.Router, item.req)
		if item.req.OnComplete != nil {
			item.req.OnComplete(result)
		}
	}
}

// Pending reports how many requests are still in flight.
func (b *SelfLinkBackend) Pending() int {
	return b.queue.Len()
}
