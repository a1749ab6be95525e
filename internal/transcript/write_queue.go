package transcript

import (
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultWriteQueueSize = 2048
	writeDropLogInterval  = 10 * time.Second
)

func (s *Store) startWriteQueue() {
	if s == nil {
		return
	}
	if s.writeQueue != nil {
		return
	}

	s.writeQueue = make(chan string, defaultWriteQueueSize)
	s.writeStop = make(chan struct{})
	s.writeDone = make(chan struct{})

	go s.writeLoop()
}

func (s *Store) stopWriteQueue() {
	if s == nil || s.writeStop == nil {
		return
	}

	select {
	case <-s.writeStop:
		// already closed
	default:
		close(s.writeStop)
	}

	if s.writeDone == nil {
		return
	}
	select {
	case <-s.writeDone:
	case <-time.After(2 * time.Second):
	}
}

func (s *Store) writeLoop() {
	defer close(s.writeDone)

	for {
		select {
		case <-s.writeStop:
			return
		case line := <-s.writeQueue:
			if s.isClosed() {
				continue
			}
			if err := s.Append(line); err != nil {
				log.WithError(err).Warn("failed to append transcript line")
			}
		}
	}
}

// Enqueue hands a line to the background appender. Chat responses are never
// blocked or degraded by transcript logging: a full queue drops the line with
// a throttled warning.
func (s *Store) Enqueue(line string) bool {
	if s == nil || line == "" || s.isClosed() || s.writeQueue == nil {
		return false
	}

	select {
	case s.writeQueue <- line:
		return true
	default:
		s.logWriteDrop()
		return false
	}
}

func (s *Store) logWriteDrop() {
	if s == nil {
		return
	}

	now := time.Now().UnixNano()
	last := s.writeDropLogAt.Load()
	if last > 0 && time.Duration(now-last) < writeDropLogInterval {
		return
	}
	// Racy update; only affects log frequency.
	s.writeDropLogAt.Store(now)

	queueLen := 0
	queueCap := 0
	if s.writeQueue != nil {
		queueLen = len(s.writeQueue)
		queueCap = cap(s.writeQueue)
	}
	log.WithFields(log.Fields{
		"queue_len": queueLen,
		"queue_cap": queueCap,
	}).Warn("transcript write queue is full; dropping line")
}
