package redis

import (
	"context"
	"log"
	"time"

	"arbdesk/internal/bus"
	"arbdesk/internal/history"
	"arbdesk/internal/ledger"
)

// Run consumes ledger and recorder events and keeps the durable documents
// current: position events re-save the book, recorded points re-save the
// history and go out on PubSub. Blocks until ctx is cancelled or the event
// channel closes. Write failures are logged, never fatal.
func (s *Store) Run(ctx context.Context, events <-chan bus.Event, book *ledger.Book, series *history.Series) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handle(ctx, ev, book, series)
		}
	}
}

func (s *Store) handle(ctx context.Context, ev bus.Event, book *ledger.Book, series *history.Series) {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch ev.Type {
	case bus.EventPositionOpened, bus.EventPositionClosed, bus.EventBookCleared:
		if err := s.SaveBook(writeCtx, book.Snapshot()); err != nil {
			log.Printf("[redis] save book after %s: %v", ev.Type, err)
		}
	case bus.EventPointRecorded:
		if err := s.SaveHistory(writeCtx, series.Points()); err != nil {
			log.Printf("[redis] save history: %v", err)
		}
		if ev.Point != nil {
			if err := s.PublishPoint(writeCtx, *ev.Point); err != nil {
				log.Printf("[redis] publish point: %v", err)
			}
		}
	}
}
