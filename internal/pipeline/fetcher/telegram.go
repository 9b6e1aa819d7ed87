// Package fetcher receives channel posts from the Telegram Bot API.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/config"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/logger"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/models"
)

// updateSource is the part of the bot client used for long polling.
type updateSource interface {
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramFetcher long-polls the Bot API and forwards channel posts and
// group messages as models.ChannelMessage values.
type TelegramFetcher struct {
	source      updateSource
	pollTimeout time.Duration
	buffer      int
	log         *logger.Log

	mu       sync.Mutex
	running  bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewTelegramFetcher authenticates the bot token against the Bot API.
func NewTelegramFetcher(cfg config.TelegramConfig, buffer int, log *logger.Log) (*TelegramFetcher, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	// The HTTP timeout must outlast the long-poll window.
	client := &http.Client{Timeout: cfg.PollTimeout + 10*time.Second}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}

	if log == nil {
		log = logger.GetLogger()
	}
	log.WithComponent("telegram_fetcher").WithFields(logger.Fields{
		"bot":        bot.Self.UserName,
		"channel_id": cfg.ChannelID,
	}).Info("telegram bot authenticated")

	return newTelegramFetcher(bot, cfg.PollTimeout, buffer, log), nil
}

func newTelegramFetcher(source updateSource, pollTimeout time.Duration, buffer int, log *logger.Log) *TelegramFetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	if buffer < 0 {
		buffer = 0
	}
	return &TelegramFetcher{
		source:      source,
		pollTimeout: pollTimeout,
		buffer:      buffer,
		log:         log,
	}
}

// Start begins polling and returns the channel of converted messages. The
// channel is closed once ctx is cancelled or the update stream ends.
func (f *TelegramFetcher) Start(ctx context.Context) (<-chan models.ChannelMessage, error) {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil, errors.New("telegram fetcher already running")
	}
	f.running = true
	f.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(f.pollTimeout / time.Second)
	u.AllowedUpdates = []string{"message", "channel_post"}

	updates := f.source.GetUpdatesChan(u)
	out := make(chan models.ChannelMessage, f.buffer)

	f.wg.Add(1)
	go f.forward(ctx, updates, out)

	f.log.WithComponent("telegram_fetcher").WithFields(logger.Fields{"poll_timeout": u.Timeout}).Info("telegram polling started")
	return out, nil
}

// Stop ends polling and waits for the forwarding goroutine.
func (f *TelegramFetcher) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	f.mu.Unlock()

	f.stopSource()
	f.wg.Wait()
	f.log.WithComponent("telegram_fetcher").Info("telegram polling stopped")
}

func (f *TelegramFetcher) forward(ctx context.Context, updates tgbotapi.UpdatesChannel, out chan<- models.ChannelMessage) {
	defer f.wg.Done()
	defer close(out)

	log := f.log.WithComponent("telegram_fetcher")
	for {
		select {
		case <-ctx.Done():
			log.Debug("fetcher stopped due to context cancellation")
			f.stopSource()
			return
		case update, ok := <-updates:
			if !ok {
				log.Debug("update stream closed")
				return
			}
			msg, ok := ConvertUpdate(update)
			if !ok {
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// stopSource stops the bot client once; it panics on a second stop.
func (f *TelegramFetcher) stopSource() {
	f.stopOnce.Do(f.source.StopReceivingUpdates)
}

// ConvertUpdate extracts a channel post or chat message from update. Edited
// posts and other update kinds are skipped. Captions stand in for text on
// media posts.
func ConvertUpdate(update tgbotapi.Update) (models.ChannelMessage, bool) {
	m := update.ChannelPost
	if m == nil {
		m = update.Message
	}
	if m == nil || m.Chat == nil {
		return models.ChannelMessage{}, false
	}

	text := m.Text
	if text == "" {
		text = m.Caption
	}

	return models.ChannelMessage{
		ChatID:    strconv.FormatInt(m.Chat.ID, 10),
		ChatType:  m.Chat.Type,
		MessageID: m.MessageID,
		Text:      text,
		Date:      time.Unix(int64(m.Date), 0).UTC(),
	}, true
}
