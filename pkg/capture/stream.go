package capture

import (
	"io"
)

const readSize = 32 * 1024

// Stream is an instrumented response body. Every chunk it reads from the
// network is recorded once.
type Stream struct {
	st *state

	pending []byte
	queue   []chunk
	locked  bool
	closed  bool
	root    bool
}

// newStream registers a stream. It must be called with st.mu held or before
// st is shared.
func (st *state) newStream() *Stream {
	s := &Stream{st: st, root: len(st.streams) == 0}
	st.streams = append(st.streams, s)
	return s
}

// Read implements io.Reader. Chunks already queued for s are delivered
// without waiting on a network read in progress on a sibling branch.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	st := s.st
	st.mu.Lock()
	if n, done, err := s.deliver(p); done {
		st.mu.Unlock()
		return n, err
	}
	st.mu.Unlock()

	// One network read at a time. A sibling may have queued a chunk for s
	// while s waited, so check again before reading.
	st.readMu.Lock()
	defer st.readMu.Unlock()
	st.mu.Lock()
	defer st.mu.Unlock()
	if n, done, err := s.deliver(p); done {
		return n, err
	}

	c, err := s.pull()
	if err != nil {
		return 0, err
	}
	s.pending = c.data
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// deliver serves p from data already held for s. done is false when a
// network read is needed. It is called with st.mu held.
func (s *Stream) deliver(p []byte) (n int, done bool, err error) {
	st := s.st
	switch {
	case s.locked:
		return 0, true, ErrLocked
	case s.closed:
		return 0, true, ErrClosed
	case st.empty:
		return 0, true, io.EOF
	}

	if len(s.pending) == 0 {
		if len(s.queue) == 0 {
			return 0, false, nil
		}
		c := s.queue[0]
		s.queue = s.queue[1:]
		st.observe(c)
		s.pending = c.data
	}
	n = copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, true, nil
}

// pull reads the next chunk from the network, hands copies to the sibling
// branches and records it. It is called with st.mu and st.readMu held and
// releases st.mu for the duration of the network read.
func (s *Stream) pull() (chunk, error) {
	st := s.st
	if st.drained {
		return chunk{}, ErrBodyUsed
	}
	if st.err != nil {
		return chunk{}, st.err
	}
	if st.eof {
		return chunk{}, io.EOF
	}
	if st.closed {
		return chunk{}, ErrClosed
	}
	st.streamed = true

	for {
		buf := make([]byte, readSize)
		src := st.src
		st.mu.Unlock()
		n, err := src.Read(buf)
		st.mu.Lock()

		if n > 0 {
			c := chunk{seq: st.nextSeq, data: buf[:n]}
			st.nextSeq++
			for _, other := range st.streams {
				if other != s && !other.locked && !other.closed {
					other.queue = append(other.queue, c)
				}
			}
			st.observe(c)
			if err == io.EOF {
				st.eof = true
			} else if err != nil {
				st.fail(err)
			}
			switch {
			case s.locked:
				// s was split during the read; its branches hold c.
				return chunk{}, ErrLocked
			case s.closed:
				return chunk{}, ErrClosed
			}
			return c, nil
		}
		switch {
		case err == io.EOF:
			st.eof = true
			return chunk{}, io.EOF
		case err != nil:
			st.fail(err)
			return chunk{}, err
		case s.locked:
			return chunk{}, ErrLocked
		case s.closed:
			return chunk{}, ErrClosed
		}
	}
}

// fail stores a terminal read error and drops the partial stream recording.
func (st *state) fail(err error) {
	st.err = err
	st.discardChunks()
}

// Tee splits s into two branches. Both branches yield every chunk that s
// had not yet delivered. s itself is locked and can only be closed.
func (s *Stream) Tee() (*Stream, *Stream) {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	a := st.newStream()
	b := st.newStream()
	if len(s.pending) > 0 {
		rest := chunk{seq: -1, data: s.pending}
		a.queue = append(a.queue, rest)
		b.queue = append(b.queue, rest)
		s.pending = nil
	}
	a.queue = append(a.queue, s.queue...)
	b.queue = append(b.queue, s.queue...)
	s.queue = nil
	s.locked = true
	return a, b
}

// Close implements io.Closer. Closing the root stream closes the underlying
// body; closing a branch only stops its delivery.
func (s *Stream) Close() error {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.queue = nil
	s.pending = nil
	if s.root {
		observedBodies.Delete(st.observed)
	}

	if !s.root || st.closed || st.src == nil {
		return nil
	}
	st.closed = true
	return st.src.Close()
}

// Body returns the single-shot readers sharing this stream's response.
func (s *Stream) Body() *Body {
	return &Body{st: s.st}
}
