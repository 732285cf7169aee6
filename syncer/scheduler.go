// Package syncer reconciles the external sources into the index on a fixed
// period. One always-on loop, sequential cycles, and a synchronous manual
// trigger that shares the same ingestion path.
package syncer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fabfab/contextsync/ingestion"
	"github.com/fabfab/contextsync/sources"
)

// Report is the outcome of one sync cycle.
type Report struct {
	Status      string `json:"status"`
	ItemsSynced int    `json:"items_synced"`
	Message     string `json:"message,omitempty"`
}

// Ingestor is the slice of the ingestion service the scheduler needs.
type Ingestor interface {
	IngestDocuments(ctx context.Context, docs []ingestion.Document) (int, error)
}

type Config struct {
	ChannelID string
	JQL       string
	BatchSize int
	Interval  time.Duration
}

type Scheduler struct {
	chat    sources.ChatSource
	tickets sources.TicketSource
	ingest  Ingestor
	cfg     Config
	logger  *log.Logger

	// cycleMu serializes sync cycles so a manual trigger never interleaves
	// with the scheduled one. Content-hash upserts would make overlap
	// harmless anyway; the mutex keeps the reports sane.
	cycleMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func New(chat sources.ChatSource, tickets sources.TicketSource, ingest Ingestor, cfg Config, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}

	return &Scheduler{
		chat:    chat,
		tickets: tickets,
		ingest:  ingest,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start launches the background loop. Safe to call once; repeated calls are
// no-ops until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop signals the loop and waits for it to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	s.logger.Printf("sync loop started (interval %s)", s.cfg.Interval)

	// First cycle fires immediately; the ticker covers the rest.
	s.SyncNow(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("sync loop stopped: %v", ctx.Err())
			return
		case <-s.stopCh:
			s.logger.Printf("sync loop stopped")
			return
		case <-ticker.C:
			s.SyncNow(ctx)
		}
	}
}

// SyncNow runs one fetch-normalize-ingest cycle synchronously and returns
// its report. A failing cycle is logged and reported as an error; it never
// takes the loop down.
func (s *Scheduler) SyncNow(ctx context.Context) Report {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	report := s.runCycle(ctx)
	if report.Status == "error" {
		s.logger.Printf("sync cycle failed: %s", report.Message)
	} else {
		s.logger.Printf("sync cycle complete: %d items", report.ItemsSynced)
	}
	return report
}

func (s *Scheduler) runCycle(ctx context.Context) Report {
	if s.ingest == nil {
		return Report{Status: "skipped", Message: "ingestion not ready"}
	}

	var docs []ingestion.Document

	if s.chat != nil && s.cfg.ChannelID != "" {
		msgs := s.chat.FetchChannelHistory(ctx, s.cfg.ChannelID, s.cfg.BatchSize)
		docs = append(docs, ingestion.ProcessSlackMessages(msgs, s.cfg.ChannelID)...)
	}

	if s.tickets != nil && s.tickets.Available() {
		tickets := s.tickets.SearchTickets(ctx, s.cfg.JQL, s.cfg.BatchSize)
		docs = append(docs, ingestion.ProcessJiraTickets(tickets)...)
	}

	if len(docs) == 0 {
		return Report{Status: "success", ItemsSynced: 0}
	}

	count, err := s.ingest.IngestDocuments(ctx, docs)
	if err != nil {
		return Report{Status: "error", Message: fmt.Sprintf("ingest documents: %v", err)}
	}

	return Report{Status: "success", ItemsSynced: count}
}
