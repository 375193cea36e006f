package queue

import (
	"context"
	"log/slog"
	"sync"

	"cedabot/app/service/conversation"

	"github.com/samber/do"
)

const bufferSize = 64

var _ do.Shutdownable = (*Service)(nil)

type processor interface {
	ProcessMessage(ctx context.Context, conversationID, message string)
}

// Service serializes message processing per conversation: one goroutine and
// one bounded channel per conversation id, so concurrent webhooks for the
// same cart never race, while different conversations process in parallel.
type Service struct {
	processor processor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mutex   sync.Mutex
	workers map[string]chan string
}

func New(di *do.Injector) (*Service, error) {
	return NewWith(do.MustInvoke[*conversation.Service](di)), nil
}

func NewWith(proc processor) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		processor: proc,
		ctx:       ctx,
		cancel:    cancel,
		workers:   make(map[string]chan string),
	}
}

// Add enqueues a message for its conversation's worker, spawning the worker
// on first use. A full buffer drops the message with a warning rather than
// blocking the webhook handler.
func (s *Service) Add(conversationID, text string) {
	s.mutex.Lock()
	ch, ok := s.workers[conversationID]
	if !ok {
		ch = make(chan string, bufferSize)
		s.workers[conversationID] = ch

		s.wg.Add(1)
		go s.run(conversationID, ch)
	}
	s.mutex.Unlock()

	select {
	case ch <- text:
	default:
		slog.Warn("Conversation queue is full, dropping message",
			slog.String("conversationId", conversationID),
			slog.Bool("telegram", true))
	}
}

func (s *Service) run(conversationID string, ch chan string) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case text := <-ch:
			s.processor.ProcessMessage(s.ctx, conversationID, text)
		}
	}
}

func (s *Service) Shutdown() error {
	s.cancel()
	s.wg.Wait()

	return nil
}
