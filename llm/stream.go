package llm

import "strings"

// Stream is a lazy sequence of partial assistant messages. Each element has
// Meta.Chunk set, carries the delta text in Content, and carries whatever
// Stats the provider has reported so far. Callers must Close the stream and
// should check Err after Next returns false.
type Stream interface {
	// Next advances to the next partial message. It returns false when the
	// stream is exhausted or failed.
	Next() bool
	// Message returns the current partial message.
	Message() *Message
	// Err returns the error that terminated the stream, if any.
	Err() error
	// Close releases the underlying connection.
	Close() error
}

// Accumulate drains a stream into a single whole assistant message:
// concatenated content, the last reported stats, Chunk cleared. The stream is
// closed before returning.
func Accumulate(s Stream) (*Message, error) {
	defer s.Close()

	var content strings.Builder
	var stats Stats
	for s.Next() {
		chunk := s.Message()
		if chunk == nil {
			continue
		}
		content.WriteString(chunk.Content)
		if chunk.Stats != (Stats{}) {
			stats = chunk.Stats
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	msg := NewAssistantMessage(content.String())
	msg.Stats = stats
	return msg, nil
}

// chanStream adapts a producer goroutine writing to a channel into the
// pull-based Stream interface. The producer closes ch when done and reports
// its terminal error through errFn.
type chanStream struct {
	ch      <-chan *Message
	errFn   func() error
	cancel  func()
	current *Message
	closed  bool
}

func (s *chanStream) Next() bool {
	if s.closed {
		return false
	}
	msg, ok := <-s.ch
	if !ok {
		return false
	}
	s.current = msg
	return true
}

func (s *chanStream) Message() *Message {
	return s.current
}

func (s *chanStream) Err() error {
	if s.errFn == nil {
		return nil
	}
	return s.errFn()
}

func (s *chanStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	// Drain so the producer goroutine can exit.
	for range s.ch {
	}
	return nil
}
