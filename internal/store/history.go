package store

import "github.com/weiawesome/wes-meet/internal/domain"

// History is a fixed-capacity FIFO of chat messages. The oldest entry is
// overwritten once the buffer is full. Not safe for concurrent use; the
// owning Room serializes access.
type History struct {
	buf   []domain.ChatMessage
	start int
	size  int
}

// NewHistory returns an empty history. A non-positive capacity falls back
// to domain.MaxHistory.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = domain.MaxHistory
	}
	return &History{buf: make([]domain.ChatMessage, capacity)}
}

// Append adds msg, evicting the oldest entry when full. It reports whether
// an eviction happened.
func (h *History) Append(msg domain.ChatMessage) bool {
	capacity := len(h.buf)
	if h.size < capacity {
		h.buf[(h.start+h.size)%capacity] = msg
		h.size++
		return false
	}
	h.buf[h.start] = msg
	h.start = (h.start + 1) % capacity
	return true
}

// Messages returns a copy of the log, oldest first.
func (h *History) Messages() []domain.ChatMessage {
	out := make([]domain.ChatMessage, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Len returns the number of stored messages.
func (h *History) Len() int { return h.size }

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.buf) }
