package workspace

// Pool is the fixed-size workspace pool: Rent blocks until a workspace is
// free, Return releases it. It is grounded on the teacher's
// internal/pool.SearchContext sync.Pool, widened from an unbounded,
// allocate-on-demand pool to a bounded, blocking one, since Rent must wait
// rather than allocate a fresh workspace: a buffered channel pre-loaded
// with numberOfThreads workspaces plays the role of
// WorkSpacePool::Rent()'s semaphore wait in the original.
type Pool struct {
	free chan *Workspace
}

// NewPool constructs a pool of n pre-built workspaces, each with the given
// initial visited-set size and queue capacity.
func NewPool(n, hashExp, queueCapacity int) *Pool {
	p := &Pool{free: make(chan *Workspace, n)}
	for i := 0; i < n; i++ {
		p.free <- New(hashExp, queueCapacity)
	}
	return p
}

// Rent blocks until a workspace is available.
func (p *Pool) Rent() *Workspace {
	return <-p.free
}

// Return releases ws back to the pool.
func (p *Pool) Return(ws *Workspace) {
	p.free <- ws
}

// Size returns the pool's fixed capacity (numberOfThreads).
func (p *Pool) Size() int { return cap(p.free) }
