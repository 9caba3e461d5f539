package audio

import "sync"

// Sink renders PCM16 audio. Play blocks until the buffer has been
// rendered fully or Cancel is called. Cancel stops the buffer being
// rendered; when no Play is in progress it latches and the sink must
// discard the next Play call instead of rendering it, so a buffer the
// queue handed over concurrently with a flush never starts playing.
type Sink interface {
	Play(pcm []byte)
	Cancel()
}

// Queue plays PCM16 buffers strictly in arrival order, one at a time,
// advancing automatically when the active buffer finishes.
type Queue struct {
	sink Sink

	mu      sync.Mutex
	items   [][]byte
	gen     uint64
	playing bool
	closed  bool
}

func NewQueue(sink Sink) *Queue {
	return &Queue{sink: sink}
}

// Enqueue appends a buffer and starts playback if the queue was idle.
func (q *Queue) Enqueue(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, pcm)
	start := !q.playing
	if start {
		q.playing = true
	}
	q.mu.Unlock()
	if start {
		go q.playLoop()
	}
}

func (q *Queue) playLoop() {
	for {
		q.mu.Lock()
		if q.closed || len(q.items) == 0 {
			q.playing = false
			q.mu.Unlock()
			return
		}
		next := q.items[0]
		q.items = q.items[1:]
		gen := q.gen
		q.mu.Unlock()

		// A flush may land between the pop above and the render
		// below; drop the popped buffer instead of handing it on.
		q.mu.Lock()
		stale := gen != q.gen
		q.mu.Unlock()
		if stale {
			continue
		}
		q.sink.Play(next)
	}
}

// Active reports whether a buffer is being rendered or waiting.
func (q *Queue) Active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing || len(q.items) > 0
}

// Flush drops all pending buffers and stops the active one. Calling it
// while idle is a no-op and does not touch the sink, so a latched
// cancel cannot swallow audio enqueued later.
func (q *Queue) Flush() {
	q.mu.Lock()
	active := q.playing || len(q.items) > 0
	q.items = nil
	q.gen++
	q.mu.Unlock()
	if active {
		q.sink.Cancel()
	}
}

// Close flushes the queue and rejects further buffers. The sink is
// always cancelled; nothing can be enqueued afterwards, so a latched
// cancel has nothing to swallow.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.gen++
	q.mu.Unlock()
	q.sink.Cancel()
}
