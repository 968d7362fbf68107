package bot

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/dealfinder/internal/cache"
	"github.com/GTDGit/dealfinder/internal/collage"
	"github.com/GTDGit/dealfinder/internal/models"
	"github.com/GTDGit/dealfinder/internal/service"
)

// captionLimit is the Telegram photo caption limit in characters.
const captionLimit = 1024

// Sender is the part of the Bot API the handlers talk to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Searcher runs the search pipeline.
type Searcher interface {
	Search(ctx context.Context, req service.SearchRequest) *service.SearchResult
}

// CollageRenderer draws the page image.
type CollageRenderer interface {
	Render(ctx context.Context, tiles []collage.Tile) ([]byte, error)
}

// Options configures the bot handlers.
type Options struct {
	ActivationPhrases []string
	SearchTimeout     time.Duration
	PollTimeout       int
}

// Bot delivers search results to Telegram chats with paginated navigation.
type Bot struct {
	out      Sender
	searcher Searcher
	pager    *service.Pager
	renderer CollageRenderer
	msgs     *Messages
	format   *Formatter
	opts     Options
}

func NewBot(out Sender, searcher Searcher, pager *service.Pager, renderer CollageRenderer, msgs *Messages, opts Options) *Bot {
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 3 * time.Minute
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 60
	}
	return &Bot{
		out:      out,
		searcher: searcher,
		pager:    pager,
		renderer: renderer,
		msgs:     msgs,
		format:   NewFormatter(msgs),
		opts:     opts,
	}
}

// Run long-polls api for updates until ctx is cancelled. Each update is
// handled on its own goroutine; Run waits for in-flight handlers on exit.
func (b *Bot) Run(ctx context.Context, api *tgbotapi.BotAPI) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.opts.PollTimeout
	updates := api.GetUpdatesChan(u)

	log.Info().Str("username", api.Self.UserName).Msg("Telegram bot started")

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			log.Info().Msg("Telegram bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate dispatches one update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int("update_id", update.UpdateID).Msg("Recovered from panic in update handler")
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	started := time.Now()
	chatID := msg.Chat.ID

	query, ok := ParseActivation(msg.Text, b.opts.ActivationPhrases)
	if !ok {
		b.reply(chatID, msg.MessageID, b.msgs.Error(msgNoActivation, ""))
		return
	}
	if query == "" {
		b.reply(chatID, msg.MessageID, b.msgs.Error(msgNoProductName, ""))
		return
	}

	var ownerID int64
	if msg.From != nil {
		ownerID = msg.From.ID
	}

	progress, err := b.out.Send(tgbotapi.NewMessage(chatID, b.msgs.SearchInProcess))
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send progress message")
	}

	searchCtx, cancel := context.WithTimeout(ctx, b.opts.SearchTimeout)
	res := b.searcher.Search(searchCtx, service.SearchRequest{
		Query:   query,
		Source:  models.SearchSourceTelegram,
		OwnerID: ownerID,
	})
	cancel()

	if err == nil {
		if _, err := b.out.Request(tgbotapi.NewDeleteMessage(chatID, progress.MessageID)); err != nil {
			log.Debug().Err(err).Msg("Failed to delete progress message")
		}
	}

	outcome := res.Outcome
	if outcome == service.OutcomeOK {
		var page service.Page
		page, outcome = b.pager.Start(cache.ChatScope(chatID), ownerID, res.Records)
		if outcome == service.OutcomeOK {
			b.sendPage(ctx, chatID, ownerID, page)
		}
	}
	if outcome != service.OutcomeOK {
		b.reply(chatID, msg.MessageID, b.msgs.Outcome(outcome, query))
	}

	log.Info().
		Int64("chat_id", chatID).
		Str("outcome", string(outcome)).
		Dur("elapsed", time.Since(started)).
		Msg("Telegram search handled")
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil || cq.From == nil {
		b.answer(cq.ID, "", false)
		return
	}
	chatID := cq.Message.Chat.ID
	clicker := cq.From.ID

	nav, err := ParseNav(cq.Data)
	if err != nil {
		b.answer(cq.ID, b.msgs.Outcome(service.OutcomeInvalidRequest, ""), true)
		return
	}
	if nav.OwnerID != clicker {
		b.answer(cq.ID, b.msgs.Outcome(service.OutcomeUnauthorized, ""), true)
		return
	}

	page, outcome := b.pager.Page(cache.ChatScope(chatID), nav.SessionID, nav.Page, clicker)
	switch outcome {
	case service.OutcomeOK:
		b.answer(cq.ID, "", false)
		b.sendPage(ctx, chatID, clicker, page)
	case service.OutcomeExpired:
		b.answer(cq.ID, "", false)
		b.reply(chatID, 0, b.msgs.Outcome(outcome, ""))
	default:
		b.answer(cq.ID, b.msgs.Outcome(outcome, ""), true)
	}

	log.Debug().
		Int64("chat_id", chatID).
		Str("session_id", nav.SessionID).
		Int("page", nav.Page).
		Str("outcome", string(outcome)).
		Msg("Pagination callback handled")
}

// sendPage sends the collage with the caption and a "more" button when the
// session has further pages. Captions over the Telegram limit go out as a
// separate text message carrying the button.
func (b *Bot) sendPage(ctx context.Context, chatID, ownerID int64, page service.Page) {
	caption := b.format.Caption(page.Products)

	var markup any
	if page.HasMore {
		next := Nav{Page: page.Index + 1, OwnerID: ownerID, SessionID: page.SessionID}
		markup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(b.msgs.MoreButton, next.Encode())),
		)
	}

	image := b.renderPage(ctx, page)
	if image == nil {
		b.sendText(chatID, caption, markup)
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "results.jpg", Bytes: image})
	if utf8.RuneCountInString(caption) <= captionLimit {
		photo.Caption = caption
		if markup != nil {
			photo.ReplyMarkup = markup
		}
		if _, err := b.out.Send(photo); err != nil {
			log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send result photo")
			b.sendText(chatID, caption, markup)
		}
		return
	}

	if _, err := b.out.Send(photo); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send result photo")
	}
	b.sendText(chatID, caption, markup)
}

func (b *Bot) renderPage(ctx context.Context, page service.Page) []byte {
	if b.renderer == nil {
		return nil
	}
	tiles := make([]collage.Tile, len(page.Products))
	for i, p := range page.Products {
		tiles[i] = collage.Tile{ImageURL: p.MainImageURL, Rank: i + 1}
	}
	image, err := b.renderer.Render(ctx, tiles)
	if err != nil {
		log.Warn().Err(err).Str("session_id", page.SessionID).Msg("Failed to render collage")
		return nil
	}
	return image
}

func (b *Bot) sendText(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.out.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send result text")
	}
}

func (b *Bot) reply(chatID int64, replyTo int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if replyTo != 0 {
		msg.ReplyToMessageID = replyTo
	}
	if _, err := b.out.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send reply")
	}
}

func (b *Bot) answer(callbackID, text string, alert bool) {
	cfg := tgbotapi.NewCallback(callbackID, text)
	cfg.ShowAlert = alert
	if _, err := b.out.Request(cfg); err != nil {
		log.Debug().Err(err).Msg("Failed to answer callback")
	}
}
