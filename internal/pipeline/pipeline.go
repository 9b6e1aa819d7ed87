// Package pipeline routes channel posts through classification, parsing and
// dispatch.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/internal/metrics"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/internal/parser"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/logger"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/models"
)

const previewLength = 150

// Sender delivers an accepted record to the ingestion endpoint.
type Sender interface {
	Send(ctx context.Context, rec models.SignalRecord) (map[string]interface{}, error)
}

// Archiver stores candidate messages with their outcome.
type Archiver interface {
	Archive(msg models.ArchivedMessage)
}

// Broadcaster pushes accepted records to live subscribers.
type Broadcaster interface {
	Broadcast(rec models.SignalRecord)
}

// Alerter notifies an operator about a failed dispatch.
type Alerter interface {
	AlertDispatchFailure(rec models.SignalRecord, cause error) error
}

// Option configures optional pipeline sinks.
type Option func(*Pipeline)

// WithArchive stores every candidate message.
func WithArchive(a Archiver) Option {
	return func(p *Pipeline) { p.archive = a }
}

// WithStream broadcasts accepted records.
func WithStream(b Broadcaster) Option {
	return func(p *Pipeline) { p.stream = b }
}

// WithAlerter reports dispatch failures.
func WithAlerter(a Alerter) Option {
	return func(p *Pipeline) { p.alerter = a }
}

// Pipeline handles posts from a single configured channel.
type Pipeline struct {
	channelID string
	workers   int

	parser    *parser.Parser
	collector *metrics.Collector
	sender    Sender
	archive   Archiver
	stream    Broadcaster
	alerter   Alerter

	log *logger.Log
}

// New creates a pipeline for channelID.
func New(channelID string, workers int, p *parser.Parser, collector *metrics.Collector, sender Sender, log *logger.Log, opts ...Option) *Pipeline {
	if log == nil {
		log = logger.GetLogger()
	}
	if workers <= 0 {
		workers = 1
	}
	pl := &Pipeline{
		channelID: channelID,
		workers:   workers,
		parser:    p,
		collector: collector,
		sender:    sender,
		log:       log,
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Run consumes in with the configured number of workers until in is closed
// or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, in <-chan models.ChannelMessage) {
	log := p.log.WithComponent("pipeline")
	log.WithFields(logger.Fields{"workers": p.workers, "channel_id": p.channelID}).Info("starting pipeline")

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, i, in, &wg)
	}
	wg.Wait()

	log.Info("pipeline stopped")
}

func (p *Pipeline) worker(ctx context.Context, workerID int, in <-chan models.ChannelMessage, wg *sync.WaitGroup) {
	defer wg.Done()

	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"worker_id": workerID})
	log.Debug("starting pipeline worker")

	for {
		select {
		case <-ctx.Done():
			log.Debug("worker stopped due to context cancellation")
			return
		case msg, ok := <-in:
			if !ok {
				log.Debug("worker stopped due to closed channel")
				return
			}
			p.Handle(ctx, msg)
		}
	}
}

// Handle processes one channel post. Failures are logged and counted; they
// never propagate to the caller.
func (p *Pipeline) Handle(ctx context.Context, msg models.ChannelMessage) {
	if msg.ChatID != p.channelID {
		return
	}

	p.collector.MessageReceived()

	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{
		"chat_id":    msg.ChatID,
		"message_id": msg.MessageID,
	})

	if strings.TrimSpace(msg.Text) == "" {
		log.Debug("ignoring post without text")
		return
	}

	log = log.WithFields(logger.Fields{"preview": preview(msg.Text)})

	if !parser.IsCandidate(msg.Text) {
		log.Debug("post is not a signal")
		return
	}

	p.collector.SignalDetected()
	log.Info("signal detected")

	rec, err := p.parser.Parse(msg.Text)
	if err != nil {
		entry := archivedFrom(msg, models.OutcomeRejected, nil, err)
		var rejectErr *parser.RejectError
		if errors.As(err, &rejectErr) {
			entry.Missing = append([]string(nil), rejectErr.Missing...)
		}
		log.WithError(err).Warn("signal rejected")
		p.archiveMessage(entry)
		return
	}

	// A dispatch already started runs to completion or to the client timeout,
	// even when the worker is being shut down.
	if _, err := p.sender.Send(context.WithoutCancel(ctx), *rec); err != nil {
		p.collector.DispatchFailed()
		log.WithError(err).WithFields(logger.Fields{"coin": rec.Coin}).Error("failed to dispatch signal")
		if p.alerter != nil {
			if alertErr := p.alerter.AlertDispatchFailure(*rec, err); alertErr != nil {
				log.WithError(alertErr).Warn("failed to send operator alert")
			}
		}
		p.archiveMessage(archivedFrom(msg, models.OutcomeDispatchFailed, rec, err))
		return
	}

	p.collector.SignalDispatched()
	log.WithFields(logger.Fields{
		"coin":      rec.Coin,
		"type":      rec.Type,
		"entry":     rec.Entry,
		"timeframe": rec.Timeframe,
	}).Info("signal dispatched")

	p.archiveMessage(archivedFrom(msg, models.OutcomeAccepted, rec, nil))
	if p.stream != nil {
		p.stream.Broadcast(*rec)
	}
}

func (p *Pipeline) archiveMessage(msg models.ArchivedMessage) {
	if p.archive == nil {
		return
	}
	p.archive.Archive(msg)
}

func archivedFrom(msg models.ChannelMessage, outcome string, rec *models.SignalRecord, err error) models.ArchivedMessage {
	out := models.ArchivedMessage{
		ChatID:    msg.ChatID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
		Outcome:   outcome,
	}
	if rec != nil {
		copied := *rec
		out.Signal = &copied
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// preview returns the first characters of text on a single line.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) > previewLength {
		runes = runes[:previewLength]
	}
	return strings.ReplaceAll(string(runes), "\n", " ")
}
