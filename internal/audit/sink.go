// Package audit records security-relevant account events, such as account deletions and
// self-service deletion requests. A record is saved to the audit_logs table and then
// written to every configured Sink so it reaches a SIEM independently of the app logs.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/package-gallery/gallery/internal/safego"
)

// LogEntry is the form of an audit record sent to sinks
type LogEntry struct {
	Timestamp     time.Time              `json:"timestamp"`
	Action        string                 `json:"action"`
	ActorUsername string                 `json:"actor_username,omitempty"`
	ResourceType  string                 `json:"resource_type,omitempty"`
	ResourceID    string                 `json:"resource_id,omitempty"`
	Status        string                 `json:"status,omitempty"`
	IPAddress     string                 `json:"ip_address,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Sink is a destination for audit entries outside the database
type Sink interface {
	Write(ctx context.Context, entry *LogEntry) error
	Close() error
}

// Sink kinds accepted in SinkConfig.Type
const (
	SinkWebhook = "webhook"
	SinkFile    = "file"
)

// SinkConfig selects and configures one sink (audit.sinks[] in the config file)
type SinkConfig struct {
	Enabled bool               `mapstructure:"enabled"`
	Type    string             `mapstructure:"type"`
	Webhook *WebhookSinkConfig `mapstructure:"webhook"`
	File    *FileSinkConfig    `mapstructure:"file"`
}

// WebhookSinkConfig configures a WebhookSink
type WebhookSinkConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Timeout time.Duration     `mapstructure:"timeout"`
	// BatchSize > 0 queues entries and posts them as a JSON array
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// FileSinkConfig configures a FileSink
type FileSinkConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Sinks writes each entry to every sink it holds
type Sinks []Sink

// OpenSinks opens the enabled sinks in cfgs. On error the sinks opened so far are closed.
func OpenSinks(cfgs []SinkConfig) (Sinks, error) {
	var sinks Sinks
	for i, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		sink, err := openSink(cfg)
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("audit sink %d (%s): %w", i, cfg.Type, err)
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

func openSink(cfg SinkConfig) (Sink, error) {
	switch cfg.Type {
	case SinkWebhook:
		if cfg.Webhook == nil {
			return nil, errors.New("missing webhook settings")
		}
		return NewWebhookSink(*cfg.Webhook)
	case SinkFile:
		if cfg.File == nil {
			return nil, errors.New("missing file settings")
		}
		return NewFileSink(*cfg.File)
	}
	return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
}

// Write hands entry to all sinks and joins their errors
func (s Sinks) Write(ctx context.Context, entry *LogEntry) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Write(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all sinks and joins their errors
func (s Sinks) Close() error {
	var errs []error
	for _, sink := range s {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WebhookSink POSTs entries as JSON. With batching, a background worker collects entries
// and posts them together when the batch fills, the flush interval passes, or on Close.
type WebhookSink struct {
	cfg    WebhookSinkConfig
	client *http.Client

	queue   chan *LogEntry
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewWebhookSink validates cfg and starts the batch worker when batching is on
func NewWebhookSink(cfg WebhookSinkConfig) (*WebhookSink, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	w := &WebhookSink{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if cfg.BatchSize > 0 {
		w.queue = make(chan *LogEntry, cfg.BatchSize*10)
		safego.Go("audit-webhook-sink", w.run)
	} else {
		close(w.stopped)
	}
	return w, nil
}

// Write posts entry immediately, or queues it in batch mode. A full queue falls back to
// a direct post.
func (w *WebhookSink) Write(ctx context.Context, entry *LogEntry) error {
	if w.queue != nil && !w.closed() {
		select {
		case w.queue <- entry:
			return nil
		default:
		}
	}
	return w.post(ctx, entry)
}

func (w *WebhookSink) closed() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

func (w *WebhookSink) run() {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	pending := make([]*LogEntry, 0, w.cfg.BatchSize)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Timeout)
		defer cancel()
		if err := w.post(ctx, pending); err != nil {
			slog.Error("audit webhook batch dropped", "entries", len(pending), "error", err)
		}
		pending = pending[:0]
	}

	for {
		select {
		case entry := <-w.queue:
			pending = append(pending, entry)
			if len(pending) >= w.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.stop:
			for {
				select {
				case entry := <-w.queue:
					pending = append(pending, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// post sends payload (one entry or a batch) as the request body
func (w *WebhookSink) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode audit payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build audit webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for name, value := range w.cfg.Headers {
		req.Header.Set(name, value)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("audit webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("audit webhook: %s", resp.Status)
	}
	return nil
}

// Close drains the queue into a final post. Calling it again is a no-op.
func (w *WebhookSink) Close() error {
	w.once.Do(func() { close(w.stop) })
	<-w.stopped
	return nil
}

// FileSink appends one JSON object per line. When MaxSizeMB is set the file is rotated
// to path.1 .. path.N before it grows past the limit.
type FileSink struct {
	cfg FileSinkConfig

	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// NewFileSink opens (or creates) the log file for appending
func NewFileSink(cfg FileSinkConfig) (*FileSink, error) {
	s := &FileSink{cfg: cfg}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSink) open() error {
	f, err := os.OpenFile(s.cfg.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open audit file %s: %w", s.cfg.Path, err)
	}
	s.f = f
	s.enc = json.NewEncoder(f)
	return nil
}

// Write appends entry as a JSON line
func (s *FileSink) Write(_ context.Context, entry *LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.full() {
		if err := s.rotate(); err != nil {
			return err
		}
	}
	if err := s.enc.Encode(entry); err != nil {
		return fmt.Errorf("write audit file %s: %w", s.cfg.Path, err)
	}
	return nil
}

func (s *FileSink) full() bool {
	if s.cfg.MaxSizeMB <= 0 {
		return false
	}
	info, err := s.f.Stat()
	return err == nil && info.Size() >= int64(s.cfg.MaxSizeMB)<<20
}

func (s *FileSink) backup(n int) string {
	return fmt.Sprintf("%s.%d", s.cfg.Path, n)
}

// rotate closes the file and shifts path -> path.1 -> path.2, dropping what falls past MaxBackups
func (s *FileSink) rotate() error {
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("close audit file for rotation: %w", err)
	}
	keep := s.cfg.MaxBackups
	if keep < 1 {
		keep = 1
	}
	_ = os.Remove(s.backup(keep))
	for n := keep - 1; n >= 1; n-- {
		_ = os.Rename(s.backup(n), s.backup(n+1))
	}
	if err := os.Rename(s.cfg.Path, s.backup(1)); err != nil {
		slog.Warn("audit file rotation failed", "path", s.cfg.Path, "error", err)
	}
	return s.open()
}

// Close closes the log file
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
