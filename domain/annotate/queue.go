package annotate

import "sync/atomic"

// Queue buffers finalized masks and their metadata until the session is saved.
// Masks are consumed once; metadata is kept for every serialization.
// Only Pending may be called from other goroutines.
type Queue struct {
	masks    []QueuedMask
	metadata []Metadata
	enqueued int
	pending  atomic.Int64
}

// NewQueue returns an empty queue.
func NewQueue() *Queue { return &Queue{} }

// Enqueue appends a mask record and its metadata row.
func (q *Queue) Enqueue(rec QueuedMask, meta Metadata) {
	q.masks = append(q.masks, rec)
	q.metadata = append(q.metadata, meta)
	q.enqueued++
	q.sync()
}

// Pending returns the number of masks not yet written. It is safe for
// concurrent use.
func (q *Queue) Pending() int { return int(q.pending.Load()) }

func (q *Queue) sync() { q.pending.Store(int64(len(q.masks))) }

// Enqueued returns the number of records ever enqueued.
func (q *Queue) Enqueued() int { return q.enqueued }

// DrainMasks removes and returns every pending mask record.
func (q *Queue) DrainMasks() []QueuedMask {
	out := q.masks
	q.masks = nil
	q.sync()
	return out
}

// Drain hands pending masks to write in order, removing each one only after
// write succeeds. On failure the failed record and everything after it stay queued.
func (q *Queue) Drain(write func(QueuedMask) error) (int, error) {
	written := 0
	for len(q.masks) > 0 {
		if err := write(q.masks[0]); err != nil {
			return written, err
		}
		q.masks[0] = QueuedMask{}
		q.masks = q.masks[1:]
		q.sync()
		written++
	}
	q.masks = nil
	q.sync()
	return written, nil
}

// AllMetadata returns a copy of every metadata row in enqueue order.
func (q *Queue) AllMetadata() []Metadata {
	out := make([]Metadata, len(q.metadata))
	copy(out, q.metadata)
	return out
}
