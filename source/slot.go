package source

import (
	"gocv.io/x/gocv"
	"sync"
	"time"
)

// Frame is a captured camera image along with its capture sequence number
type Frame struct {
	Mat  gocv.Mat
	Seq  uint64
	Time time.Time
}

// Close frees the frame Mat
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Slot is a single slot mailbox handing the latest captured frame from a
// producer goroutine to a single consumer.  Publishing overwrites any frame
// not yet consumed, so the consumer always works on the newest frame and a
// slow consumer never builds up a backlog
type Slot struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *Frame
	seq    uint64
	drops  uint64
	closed bool
}

// NewSlot returns an empty Slot
func NewSlot() *Slot {
	s := &Slot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Publish places the Mat in the slot taking ownership of it.  An unconsumed
// frame already in the slot is closed and counted as dropped.  Publishing
// to a closed slot closes the Mat and returns false
func (s *Slot) Publish(mat gocv.Mat) bool {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		mat.Close()
		return false
	}

	if s.frame != nil {
		s.frame.Close()
		s.drops++
	}

	s.seq++
	s.frame = &Frame{
		Mat:  mat,
		Seq:  s.seq,
		Time: time.Now(),
	}

	s.cond.Signal()
	return true
}

// Next blocks until a frame is available and returns it, transferring
// ownership to the caller who must Close it.  Nil is returned once the slot
// has been closed
func (s *Slot) Next() *Frame {

	s.mu.Lock()
	defer s.mu.Unlock()

	for s.frame == nil && !s.closed {
		s.cond.Wait()
	}

	if s.closed {
		return nil
	}

	f := s.frame
	s.frame = nil
	return f
}

// Close wakes any blocked consumer and frees an unconsumed frame.  It is safe
// to call more than once
func (s *Slot) Close() {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true

	if s.frame != nil {
		s.frame.Close()
		s.frame = nil
	}

	s.cond.Broadcast()
}

// Drops returns the number of frames overwritten before being consumed
func (s *Slot) Drops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

// Published returns the number of frames published to the slot
func (s *Slot) Published() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
