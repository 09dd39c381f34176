package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/google/uuid"

	"github.com/onnwee/convbot/telemetry"
)

// ErrNotConfigured is returned by Run when credentials or channels are missing.
var ErrNotConfigured = errors.New("chat bot not configured")

// DefaultHandlerTimeout bounds a single plugin call.
const DefaultHandlerTimeout = 10 * time.Second

// maxReplyLength is the longest message Twitch accepts.
const maxReplyLength = 500

// SayFunc posts text to a channel.
type SayFunc func(channel, text string)

// Bot relays chat messages to plugins and posts their replies.
type Bot struct {
	Username string
	Token    string
	Channels []string
	Plugins  []Plugin

	// MaxConcurrent bounds simultaneously handled messages; 0 means DefaultMaxConcurrent.
	MaxConcurrent int
	// HandlerTimeout bounds each plugin call; 0 means DefaultHandlerTimeout.
	HandlerTimeout time.Duration

	slotsOnce sync.Once
	slots     handlerSlots
	wg        sync.WaitGroup
}

func (b *Bot) handlerSlots() handlerSlots {
	b.slotsOnce.Do(func() { b.slots = newHandlerSlots(b.MaxConcurrent) })
	return b.slots
}

func (b *Bot) handlerTimeout() time.Duration {
	if b.HandlerTimeout > 0 {
		return b.HandlerTimeout
	}
	return DefaultHandlerTimeout
}

// Run connects to Twitch chat and serves messages until ctx is canceled.
// In-flight handlers are awaited before it returns.
func (b *Bot) Run(ctx context.Context) error {
	if b.Username == "" || b.Token == "" || len(b.Channels) == 0 {
		return ErrNotConfigured
	}
	client := twitch.NewClient(b.Username, b.Token)
	say := func(channel, text string) { client.Say(channel, text) }

	client.OnConnect(func() {
		slog.Info("twitch chat connected", slog.String("component", "chat"), slog.Any("channels", b.Channels))
	})
	client.OnPrivateMessage(func(pm twitch.PrivateMessage) {
		b.Dispatch(ctx, messageFrom(pm), say)
	})

	// Handle context cancellation by closing the client
	go func() {
		<-ctx.Done()
		if err := client.Disconnect(); err != nil && !errors.Is(err, twitch.ErrConnectionIsNotOpen) {
			slog.Warn("twitch chat disconnect", slog.Any("err", err))
		}
	}()

	client.Join(b.Channels...)
	err := client.Connect()
	b.Wait()
	if errors.Is(err, twitch.ErrClientDisconnected) || ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("twitch chat connect: %w", err)
	}
	return nil
}

// Dispatch hands msg to the plugins on a new goroutine and returns. Messages
// from the bot itself are ignored; when every handler slot is busy the
// message is dropped.
func (b *Bot) Dispatch(ctx context.Context, msg Message, say SayFunc) {
	if strings.EqualFold(msg.User, b.Username) || strings.TrimSpace(msg.Text) == "" {
		return
	}
	slots := b.handlerSlots()
	if !slots.tryAcquire() {
		telemetry.IncDroppedMessages()
		slog.Warn("chat message dropped, all handler slots busy",
			slog.String("channel", msg.Channel), slog.Int("active", slots.active()))
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer slots.release()
		telemetry.AddInflight(1)
		defer telemetry.AddInflight(-1)

		b.handle(telemetry.WithCorrelation(ctx, uuid.NewString()), msg, say)
	}()
}

// Wait blocks until every dispatched message has been handled.
func (b *Bot) Wait() { b.wg.Wait() }

func (b *Bot) handle(ctx context.Context, msg Message, say SayFunc) {
	logger := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "chat"),
		slog.String("channel", msg.Channel),
		slog.String("msg_id", msg.ID),
	)
	for _, p := range b.Plugins {
		text, ok := b.reply(ctx, p, msg, logger)
		if !ok {
			continue
		}
		say(msg.Channel, truncate(text, maxReplyLength))
		telemetry.IncChatReplies()
		logger.Debug("replied", slog.String("plugin", p.Name()), slog.String("user", msg.User))
	}
}

// reply calls one plugin, converting a panic into no reply.
func (b *Bot) reply(ctx context.Context, p Plugin, msg Message, logger *slog.Logger) (text string, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, b.handlerTimeout())
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			telemetry.IncHandlerPanics()
			logger.Error("plugin panicked", slog.String("plugin", p.Name()), slog.Any("panic", r))
			text, ok = "", false
		}
	}()
	text, ok = p.Reply(ctx, msg)
	return text, ok && strings.TrimSpace(text) != ""
}

func messageFrom(pm twitch.PrivateMessage) Message {
	return Message{
		ID:      pm.ID,
		Channel: pm.Channel,
		User:    pm.User.Name,
		Text:    pm.Message,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
