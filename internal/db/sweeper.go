package db

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sweeper periodically drops expired KV and spam state rows. Purely
// housekeeping, reads treat expired rows as absent either way.
type Sweeper struct {
	client   Client
	interval time.Duration

	runMutex sync.Mutex
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewSweeper(client Client, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{client: client, interval: interval}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()
	if s.stop != nil {
		return nil
	}
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				n, err := s.client.SweepExpired(ctx)
				if err != nil {
					log.WithError(err).Warn("expired state sweep failed")
					continue
				}
				if n > 0 {
					log.WithField("rows", n).Debug("swept expired state")
				}
			}
		}
	}()
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	s.wg.Wait()
	s.stop = nil
	return nil
}
