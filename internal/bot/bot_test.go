package bot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/dealfinder/internal/cache"
	"github.com/GTDGit/dealfinder/internal/collage"
	"github.com/GTDGit/dealfinder/internal/models"
	"github.com/GTDGit/dealfinder/internal/service"
	"github.com/GTDGit/dealfinder/internal/utils"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type fakeSearcher struct {
	result *service.SearchResult
	got    []service.SearchRequest
}

func (f *fakeSearcher) Search(_ context.Context, req service.SearchRequest) *service.SearchResult {
	f.got = append(f.got, req)
	return f.result
}

type fakeRenderer struct{ err error }

func (f fakeRenderer) Render(context.Context, []collage.Tile) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("jpeg"), nil
}

func products(n int) []models.ProductRecord {
	out := make([]models.ProductRecord, n)
	for i := range out {
		out[i] = models.ProductRecord{
			ProductID:     string(rune('a' + i)),
			Title:         "speaker",
			AffiliateLink: "https://s/" + string(rune('a'+i)),
			Price:         decimal.NewNullDecimal(decimal.RequireFromString("19.9")),
			SalesCount:    models.Int(1200),
			Rating:        models.Float(4.8),
			ReviewCount:   models.Int(35),
		}
	}
	return out
}

func newTestBot(t *testing.T, result *service.SearchResult) (*Bot, *fakeSender, *fakeSearcher) {
	t.Helper()
	msgs, err := LoadMessages("")
	require.NoError(t, err)
	out := &fakeSender{}
	searcher := &fakeSearcher{result: result}
	pager := service.NewPager(cache.NewSessionRegistry(100, 10), 4)
	b := NewBot(out, searcher, pager, fakeRenderer{}, msgs, Options{ActivationPhrases: []string{"חפש לי", "מצא לי"}})
	return b, out, searcher
}

func textMessage(chatID, userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 7,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: userID},
	}}
}

func callback(chatID, userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func moreButton(t *testing.T, c tgbotapi.Chattable) string {
	t.Helper()
	photo, ok := c.(tgbotapi.PhotoConfig)
	require.True(t, ok)
	markup, ok := photo.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok, "expected a more button")
	return *markup.InlineKeyboard[0][0].CallbackData
}

func lastText(t *testing.T, out *fakeSender) string {
	t.Helper()
	msg, ok := out.sent[len(out.sent)-1].(tgbotapi.MessageConfig)
	require.True(t, ok)
	return msg.Text
}

func lastAlert(t *testing.T, out *fakeSender) tgbotapi.CallbackConfig {
	t.Helper()
	cfg, ok := out.requests[len(out.requests)-1].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	return cfg
}

func TestParseNav(t *testing.T) {
	n := Nav{Page: 2, OwnerID: 42, SessionID: "abc"}
	got, err := ParseNav(n.Encode())
	require.NoError(t, err)
	assert.Equal(t, n, got)

	for _, bad := range []string{"", "nav:1:2", "nav:x:2:s", "nav:-1:2:s", "nav:1:y:s", "go:1:2:s", "nav:1:2:"} {
		_, err := ParseNav(bad)
		assert.Error(t, err, bad)
	}
	_, err = ParseNav("nav:x:2:s")
	assert.ErrorIs(t, err, utils.ErrInvalidPage)
}

func TestParseActivation(t *testing.T) {
	phrases := []string{"חפש לי", "מצא לי"}

	q, ok := ParseActivation("  חפש לי  רמקול jbl ", phrases)
	assert.True(t, ok)
	assert.Equal(t, "רמקול jbl", q)

	q, ok = ParseActivation("מצא לי", phrases)
	assert.True(t, ok)
	assert.Empty(t, q)

	_, ok = ParseActivation("רמקול", phrases)
	assert.False(t, ok)
}

func TestLoadMessages_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signature: test bot\nerrors:\n  exhausted: done\n"), 0o644))

	m, err := LoadMessages(path)
	require.NoError(t, err)
	assert.Equal(t, "test bot", m.Signature)
	assert.Equal(t, "done", m.Outcome(service.OutcomeExhausted, ""))
	assert.Equal(t, "חפש עוד תוצאות", m.MoreButton)
	assert.Contains(t, m.Outcome(service.OutcomeNoResults, "jbl"), "'jbl'")

	_, err = LoadMessages(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMessages_DistinctPerOutcome(t *testing.T) {
	m, err := LoadMessages("")
	require.NoError(t, err)
	seen := map[string]service.Outcome{}
	for _, o := range []service.Outcome{
		service.OutcomeNoResults, service.OutcomeRateLimited, service.OutcomeExpired,
		service.OutcomeExhausted, service.OutcomeUnauthorized, service.OutcomeInvalidRequest, service.OutcomeFailed,
	} {
		text := m.Outcome(o, "q")
		require.NotEmpty(t, text, o)
		prev, dup := seen[text]
		assert.False(t, dup, "%s and %s share a message", o, prev)
		seen[text] = o
	}
}

func TestFormatter_Caption(t *testing.T) {
	m, err := LoadMessages("")
	require.NoError(t, err)
	f := NewFormatter(m)

	recs := products(2)
	recs[1].Rating = models.OptFloat{}
	caption := f.Caption(recs)

	assert.Contains(t, caption, "🥇 speaker")
	assert.Contains(t, caption, "🥈 speaker")
	assert.Contains(t, caption, "1,200")
	assert.Contains(t, caption, "19.90")
	assert.Contains(t, caption, "https://s/a")
	assert.Contains(t, caption, "⭐️ - מ-35")
	assert.True(t, strings.HasSuffix(caption, "שמשון מותגים"))
}

func TestBot_SearchAndPaginate(t *testing.T) {
	b, out, searcher := newTestBot(t, &service.SearchResult{Outcome: service.OutcomeOK, Records: products(6)})
	ctx := context.Background()

	b.HandleUpdate(ctx, textMessage(100, 42, "חפש לי רמקול"))
	require.Len(t, searcher.got, 1)
	assert.Equal(t, "רמקול", searcher.got[0].Query)
	assert.Equal(t, int64(42), searcher.got[0].OwnerID)

	// progress message, then the first page photo
	require.Len(t, out.sent, 2)
	data := moreButton(t, out.sent[1])
	nav, err := ParseNav(data)
	require.NoError(t, err)
	assert.Equal(t, 1, nav.Page)

	// someone else clicks
	b.HandleUpdate(ctx, callback(100, 7, data))
	alert := lastAlert(t, out)
	assert.True(t, alert.ShowAlert)
	assert.Equal(t, b.msgs.Outcome(service.OutcomeUnauthorized, ""), alert.Text)

	// the owner clicks: last page, no further button
	b.HandleUpdate(ctx, callback(100, 42, data))
	require.Len(t, out.sent, 3)
	photo := out.sent[2].(tgbotapi.PhotoConfig)
	assert.Nil(t, photo.ReplyMarkup)
	assert.Contains(t, photo.Caption, "🥇")

	// clicking again once exhausted
	b.HandleUpdate(ctx, callback(100, 42, data))
	assert.Equal(t, b.msgs.Outcome(service.OutcomeExhausted, ""), lastAlert(t, out).Text)
}

func TestBot_ExpiredSession(t *testing.T) {
	b, out, _ := newTestBot(t, nil)

	b.HandleUpdate(context.Background(), callback(100, 42, Nav{Page: 1, OwnerID: 42, SessionID: "gone"}.Encode()))
	assert.Equal(t, b.msgs.Outcome(service.OutcomeExpired, ""), lastText(t, out))
}

func TestBot_InvalidCallback(t *testing.T) {
	b, out, _ := newTestBot(t, nil)

	b.HandleUpdate(context.Background(), callback(100, 42, "garbage"))
	assert.Equal(t, b.msgs.Outcome(service.OutcomeInvalidRequest, ""), lastAlert(t, out).Text)
	assert.Empty(t, out.sent)
}

func TestBot_ActivationErrors(t *testing.T) {
	b, out, searcher := newTestBot(t, nil)
	ctx := context.Background()

	b.HandleUpdate(ctx, textMessage(1, 2, "hello"))
	assert.Equal(t, b.msgs.Error(msgNoActivation, ""), lastText(t, out))

	b.HandleUpdate(ctx, textMessage(1, 2, "חפש לי   "))
	assert.Equal(t, b.msgs.Error(msgNoProductName, ""), lastText(t, out))
	assert.Empty(t, searcher.got)
}

func TestBot_NoResults(t *testing.T) {
	b, out, _ := newTestBot(t, &service.SearchResult{Outcome: service.OutcomeNoResults})

	b.HandleUpdate(context.Background(), textMessage(1, 2, "מצא לי zebra"))
	assert.Equal(t, b.msgs.Outcome(service.OutcomeNoResults, "zebra"), lastText(t, out))
}

func TestBot_CollageFailureFallsBackToText(t *testing.T) {
	b, out, _ := newTestBot(t, &service.SearchResult{Outcome: service.OutcomeOK, Records: products(2)})
	b.renderer = fakeRenderer{err: errors.New("no images")}

	b.HandleUpdate(context.Background(), textMessage(1, 2, "חפש לי speaker"))
	msg, ok := out.sent[len(out.sent)-1].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "https://s/b")
	assert.Nil(t, msg.ReplyMarkup)
}
