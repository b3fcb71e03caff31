// Package reader talks to Telegram as a user account over MTProto and
// exposes the two calls ingestion needs: resolving a channel handle and
// reading its recent history.
package reader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"

	coreerrors "github.com/lueurxax/channel-digest/internal/core/errors"
)

// maxHistoryBatch is the largest page MessagesGetHistory serves.
const maxHistoryBatch = 100

var (
	ErrUnsupportedProxy = errors.New("proxy dialer does not support contexts")
	ErrMissingAPIID     = errors.New("TG_API_ID and TG_API_HASH are required")
)

// Channel is a resolved broadcast channel.
type Channel struct {
	ID         int64
	AccessHash int64
	Handle     string
	Title      string
}

// Message is one text post as returned by history, newest first.
type Message struct {
	ID   int64
	Text string
	Date time.Time
}

// Upstream is what the ingestion engine needs from Telegram.
type Upstream interface {
	ResolveChannel(ctx context.Context, handle string) (Channel, error)
	History(ctx context.Context, ch Channel, limit int, cutoff time.Time) ([]Message, error)
}

// FloodWaitError asks the caller to pause before retrying.
type FloodWaitError struct {
	Duration time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait %s", e.Duration)
}

// Config holds the user-account credentials.
type Config struct {
	APIID       int
	APIHash     string
	Phone       string
	Password    string
	SessionPath string
	ProxyURL    string
}

var _ Upstream = (*Reader)(nil)

type Reader struct {
	cfg    Config
	logger *zerolog.Logger

	mu  sync.RWMutex
	api *tg.Client
}

func New(cfg Config, logger *zerolog.Logger) *Reader {
	return &Reader{cfg: cfg, logger: logger}
}

// Run connects, authenticates when the session is new, and calls fn while
// the connection is up. Upstream calls are valid only inside fn.
func (r *Reader) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.cfg.APIID == 0 || r.cfg.APIHash == "" {
		return ErrMissingAPIID
	}

	opts := telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{Path: r.cfg.SessionPath},
	}

	if r.cfg.ProxyURL != "" {
		resolver, err := proxyResolver(r.cfg.ProxyURL)
		if err != nil {
			return err
		}

		opts.Resolver = resolver
	}

	client := telegram.NewClient(r.cfg.APIID, r.cfg.APIHash, opts)

	return client.Run(ctx, func(ctx context.Context) error {
		if err := client.Auth().IfNecessary(ctx, r.authFlow()); err != nil {
			return fmt.Errorf("telegram auth: %w", err)
		}

		r.logger.Info().Msg("Successfully authenticated as user")

		r.mu.Lock()
		r.api = client.API()
		r.mu.Unlock()

		defer func() {
			r.mu.Lock()
			r.api = nil
			r.mu.Unlock()
		}()

		return fn(ctx)
	})
}

func proxyResolver(raw string) (dcs.Resolver, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}

	dialer, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("build proxy dialer: %w", err)
	}

	cd, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, ErrUnsupportedProxy
	}

	return dcs.Plain(dcs.PlainOptions{Dial: cd.DialContext}), nil
}

func (r *Reader) client() (*tg.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.api == nil {
		return nil, coreerrors.ErrClientNotInitialized
	}

	return r.api, nil
}

// ResolveChannel looks a public handle up. Anything other than a channel
// yields ErrNotAChannel; unknown handles yield ErrChannelNotFound.
func (r *Reader) ResolveChannel(ctx context.Context, handle string) (Channel, error) {
	api, err := r.client()
	if err != nil {
		return Channel{}, err
	}

	resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: handle})
	if err != nil {
		if fw := asFloodWait(err); fw != nil {
			return Channel{}, fw
		}

		if tgerr.Is(err, "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID") {
			return Channel{}, fmt.Errorf("%w: %s", coreerrors.ErrChannelNotFound, handle)
		}

		return Channel{}, fmt.Errorf("resolve %s: %w", handle, err)
	}

	if len(resolved.Chats) == 0 {
		return Channel{}, fmt.Errorf("%w: %s", coreerrors.ErrNotAChannel, handle)
	}

	channel, ok := resolved.Chats[0].(*tg.Channel)
	if !ok {
		return Channel{}, fmt.Errorf("%w: %s", coreerrors.ErrNotAChannel, handle)
	}

	ch := Channel{
		ID:         channel.ID,
		AccessHash: channel.AccessHash,
		Handle:     channel.Username,
		Title:      channel.Title,
	}

	if ch.Handle == "" {
		ch.Handle = handle
	}

	return ch, nil
}

// History returns up to limit text posts, newest first. Service messages
// are skipped. Paging stops at the first post older than cutoff, which is
// included as the last element so callers can see where the window ended.
func (r *Reader) History(ctx context.Context, ch Channel, limit int, cutoff time.Time) ([]Message, error) {
	api, err := r.client()
	if err != nil {
		return nil, err
	}

	peer := &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}

	var (
		out      []Message
		offsetID int
	)

	for len(out) < limit {
		batch := min(limit-len(out), maxHistoryBatch)

		history, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			Limit:    batch,
		})
		if err != nil {
			if fw := asFloodWait(err); fw != nil {
				return out, fw
			}

			return out, fmt.Errorf("get history for %s: %w", ch.Handle, err)
		}

		raw := historyMessages(history)
		if len(raw) == 0 {
			break
		}

		var done bool

		out, offsetID, done = appendPage(out, raw, offsetID, cutoff)
		if done {
			return out, nil
		}

		if len(raw) < batch {
			break
		}
	}

	return out, nil
}

// appendPage converts one history page and reports whether a post older
// than cutoff was reached. The returned offset is the last message ID seen.
func appendPage(out []Message, raw []tg.MessageClass, offsetID int, cutoff time.Time) ([]Message, int, bool) {
	for _, m := range raw {
		msg, ok := m.(*tg.Message)
		if !ok {
			if svc, ok := m.(*tg.MessageService); ok {
				offsetID = svc.ID
			}

			continue
		}

		offsetID = msg.ID
		date := time.Unix(int64(msg.Date), 0).UTC()
		out = append(out, Message{ID: int64(msg.ID), Text: msg.Message, Date: date})

		if date.Before(cutoff) {
			return out, offsetID, true
		}
	}

	return out, offsetID, false
}

func historyMessages(h tg.MessagesMessagesClass) []tg.MessageClass {
	switch v := h.(type) {
	case *tg.MessagesMessages:
		return v.Messages
	case *tg.MessagesMessagesSlice:
		return v.Messages
	case *tg.MessagesChannelMessages:
		return v.Messages
	default:
		return nil
	}
}

func asFloodWait(err error) *FloodWaitError {
	rpcErr, ok := tgerr.As(err)
	if !ok || rpcErr.Type != "FLOOD_WAIT" {
		return nil
	}

	return &FloodWaitError{Duration: time.Duration(rpcErr.Argument) * time.Second}
}
