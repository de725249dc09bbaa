package crawler

import "sync"

// Task is one unit of crawl work: a canonical URL plus how it was
// reached.
type Task struct {
	// URL is the canonical URL to fetch.
	URL string

	// Depth is the breadth-first distance from the seed.
	Depth int

	// FoundOn is the canonical URL of the page whose link produced
	// this task. The seed references itself.
	FoundOn string
}

// Frontier is the crawl admission control: a seen-set plus a page
// budget, shared by all workers.
//
// Design decision: the budget is enforced at admission rather than at
// fetch time so that "max pages" means a hard bound on work performed.
// Checking at fetch time would let an unbounded queue accumulate behind
// the cap.
type Frontier struct {
	mu       sync.Mutex
	seen     map[string]bool
	admitted int
	maxPages int
}

// NewFrontier creates a Frontier with the given page budget.
// A non-positive budget means unlimited.
func NewFrontier(maxPages int) *Frontier {
	return &Frontier{
		seen:     make(map[string]bool),
		maxPages: maxPages,
	}
}

// Admit attempts to claim a canonical URL for crawling. It returns true
// exactly once per URL, and false once the page budget is spent. A
// budget rejection leaves the URL unmarked; once the budget is spent no
// later admission can succeed either, so the URL can never be claimed
// through the gap.
func (f *Frontier) Admit(canonicalURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seen[canonicalURL] {
		return false
	}
	if f.maxPages > 0 && f.admitted >= f.maxPages {
		return false
	}
	f.seen[canonicalURL] = true
	f.admitted++
	return true
}

// MarkSeen records a canonical URL as seen without consuming budget.
// Used for post-redirect identities: the fetch already happened under
// the original URL, the final URL must just never be fetched again.
func (f *Frontier) MarkSeen(canonicalURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[canonicalURL] = true
}

// Seen reports whether a canonical URL has been encountered.
func (f *Frontier) Seen(canonicalURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[canonicalURL]
}

// Admitted returns the number of URLs claimed for crawling so far.
func (f *Frontier) Admitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admitted
}

// taskQueue is an unbounded work queue with completion tracking, built
// for a fixed worker pool draining a frontier whose size is unknown up
// front. pop blocks until work arrives, and the queue shuts down on its
// own once every pushed task has been marked done.
type taskQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []Task
	pending int
	closed  bool
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push adds a task and wakes one worker. Follow-up tasks must be pushed
// before the producing task is marked done, or the queue can shut down
// with work still queued.
func (q *taskQueue) push(t Task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.pending++
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until a task is available or the queue has shut down.
func (q *taskQueue) pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return Task{}, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true
}

// done marks one popped task complete. The final completion closes the
// queue and releases every blocked worker.
func (q *taskQueue) done() {
	q.mu.Lock()
	q.pending--
	if q.pending == 0 {
		q.closed = true
		q.cond.Broadcast()
	}
	q.mu.Unlock()
}

// shutdown closes the queue immediately, dropping anything still
// queued. Used on context cancellation.
func (q *taskQueue) shutdown() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
