package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"payment_notification_bot/internal/app"
	"payment_notification_bot/internal/domain/account"
	"payment_notification_bot/internal/domain/payment"
	"payment_notification_bot/internal/testutil"

	"github.com/shopspring/decimal"
	"gopkg.in/telebot.v3"
)

const adminID = 42

type apiCall struct {
	Method string
	ChatID string
	Text   string
}

// fakeBotAPI answers Bot API requests with a minimal message and records them.
type fakeBotAPI struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)
	text, _ := payload["text"].(string)
	chatID, _ := payload["chat_id"].(string)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: path.Base(r.URL.Path), ChatID: chatID, Text: text})
	n := len(f.calls)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":1,"type":"private"}}}`, n)
}

func (f *fakeBotAPI) reset() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.calls
	f.calls = nil
	return calls
}

type stubBalances struct {
	balance decimal.Decimal
	err     error
}

func (s stubBalances) FetchBalance(context.Context, string) (decimal.Decimal, error) {
	return s.balance, s.err
}

type botFixture struct {
	bot      *telebot.Bot
	api      *fakeBotAPI
	registry *testutil.Registry
	store    *testutil.Store
}

func newBotFixture(t *testing.T, balances app.BalanceSource, accounts ...*account.Account) *botFixture {
	t.Helper()

	api := &fakeBotAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	b, err := telebot.NewBot(telebot.Settings{
		URL:         srv.URL,
		Token:       "test-token",
		Offline:     true,
		Synchronous: true,
		OnError: func(err error, _ telebot.Context) {
			t.Errorf("handler error: %v", err)
		},
	})
	if err != nil {
		t.Fatalf("NewBot() error: %v", err)
	}

	f := &botFixture{
		bot:      b,
		api:      api,
		registry: testutil.NewRegistry(accounts...),
		store:    testutil.NewStore(),
	}
	resolver := payment.PeriodResolver{Days: []int{1, 16}, DaysBefore: 2, DaysAfter: 2, Location: time.UTC}
	accountService := app.NewAccountService(f.registry, balances, 12, testutil.DiscardLogger())
	adminService := app.NewAdminService(f.registry, f.store, resolver, adminID)

	RegisterBotCommands(context.Background(), b, accountService, adminService, time.UTC, testutil.DiscardLogger())
	RegisterAdminHandlers(context.Background(), b, adminService, time.UTC, testutil.DiscardLogger())
	return f
}

func (f *botFixture) say(chatID int64, text string) []apiCall {
	f.api.reset()
	f.bot.ProcessUpdate(telebot.Update{Message: &telebot.Message{
		Text:   text,
		Sender: &telebot.User{ID: chatID},
		Chat:   &telebot.Chat{ID: chatID, Type: telebot.ChatPrivate},
	}})
	return f.api.reset()
}

func lastText(t *testing.T, calls []apiCall) string {
	t.Helper()
	if len(calls) == 0 {
		t.Fatal("bot sent nothing")
	}
	return calls[len(calls)-1].Text
}

func TestCardRegistrationFlow(t *testing.T) {
	f := newBotFixture(t, stubBalances{})

	if got := lastText(t, f.say(7, "/start")); got != startAskCard(12) {
		t.Errorf("/start reply = %q", got)
	}

	steps := []struct {
		input string
		want  string
	}{
		{input: "1234", want: cardWrongLength(12, 4)},
		{input: "1234-5678-9012", want: msgCardOnlyDigits},
		{input: " 123456789012 ", want: cardSaved("123456789012")},
	}
	for _, step := range steps {
		if got := lastText(t, f.say(7, step.input)); got != step.want {
			t.Errorf("reply to %q = %q, want %q", step.input, got, step.want)
		}
	}

	number, err := f.registry.GetAccountNumber(context.Background(), 7)
	if err != nil || number != "12345678901" {
		t.Fatalf("stored number = %q, %v", number, err)
	}

	if got := lastText(t, f.say(7, "/start")); got != startWithCard("12345678901") {
		t.Errorf("second /start reply = %q", got)
	}
	if got := lastText(t, f.say(7, "999999999999")); got != msgUnknownInput {
		t.Errorf("text after registration = %q, want the unknown input hint", got)
	}
}

func TestCardCommandReplacesCard(t *testing.T) {
	f := newBotFixture(t, stubBalances{}, &account.Account{ChatID: 7, AccountNumber: "11111111111"})

	f.say(7, "/card")
	f.say(7, "222222222222")

	number, _ := f.registry.GetAccountNumber(context.Background(), 7)
	if number != "22222222222" {
		t.Errorf("stored number = %q, want 22222222222", number)
	}
}

func TestNonTextWhileWaitingForCard(t *testing.T) {
	f := newBotFixture(t, stubBalances{})
	f.say(7, "/start")

	f.api.reset()
	f.bot.ProcessUpdate(telebot.Update{Message: &telebot.Message{
		Photo:  &telebot.Photo{},
		Sender: &telebot.User{ID: 7},
		Chat:   &telebot.Chat{ID: 7, Type: telebot.ChatPrivate},
	}})
	if got := lastText(t, f.api.reset()); got != msgSendTextMessage {
		t.Errorf("reply to photo = %q", got)
	}
}

func TestBalanceButton(t *testing.T) {
	tests := []struct {
		name        string
		accounts    []*account.Account
		balances    stubBalances
		wantCalls   []string
		wantText    string
		wantHistory int
	}{
		{
			name:      "no card",
			wantCalls: []string{"sendMessage"},
			wantText:  msgNoCardSaved,
		},
		{
			name:        "balance shown and recorded",
			accounts:    []*account.Account{{ChatID: 7, AccountNumber: "12345678901"}},
			balances:    stubBalances{balance: decimal.RequireFromString("2500.5")},
			wantCalls:   []string{"sendMessage", "editMessageText"},
			wantText:    "Баланс вашей карты: 2500.50 NOK",
			wantHistory: 1,
		},
		{
			name:      "source failure",
			accounts:  []*account.Account{{ChatID: 7, AccountNumber: "12345678901"}},
			balances:  stubBalances{err: errors.New("unexpected response status: 500")},
			wantCalls: []string{"sendMessage", "editMessageText"},
			wantText:  msgBalanceError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBotFixture(t, tt.balances, tt.accounts...)

			calls := f.say(7, btnGetBalanceText)
			if len(calls) != len(tt.wantCalls) {
				t.Fatalf("calls = %+v, want methods %v", calls, tt.wantCalls)
			}
			for i, method := range tt.wantCalls {
				if calls[i].Method != method {
					t.Errorf("call %d = %s, want %s", i, calls[i].Method, method)
				}
			}
			if got := lastText(t, calls); got != tt.wantText {
				t.Errorf("reply = %q, want %q", got, tt.wantText)
			}

			history, _ := f.registry.ListBalanceHistory(context.Background(), 7, 10)
			if len(history) != tt.wantHistory {
				t.Errorf("history entries = %d, want %d", len(history), tt.wantHistory)
			}
		})
	}
}

func TestHistoryCommand(t *testing.T) {
	f := newBotFixture(t, stubBalances{balance: decimal.NewFromInt(100)},
		&account.Account{ChatID: 7, AccountNumber: "12345678901"})

	if got := lastText(t, f.say(7, "/history")); got != msgHistoryEmpty {
		t.Errorf("empty history reply = %q", got)
	}

	f.say(7, btnGetBalanceText)
	got := lastText(t, f.say(7, "/history"))
	if !strings.Contains(got, "100.00 NOK") {
		t.Errorf("history reply = %q, want the recorded balance", got)
	}
}

func TestAdminCommands(t *testing.T) {
	f := newBotFixture(t, stubBalances{},
		&account.Account{ChatID: 7, AccountNumber: "12345678901"},
		&account.Account{ChatID: 8},
	)

	for _, cmd := range []string{"/status", "/accounts"} {
		if got := lastText(t, f.say(7, cmd)); got != msgNotAuthorized {
			t.Errorf("%s by user = %q", cmd, got)
		}
	}

	status := lastText(t, f.say(adminID, "/status"))
	if !strings.Contains(status, "Пользователей: 2, с картой: 1") {
		t.Errorf("/status reply = %q", status)
	}

	list := lastText(t, f.say(adminID, "/accounts"))
	if !strings.Contains(list, "7: *******8901") || !strings.Contains(list, "8: карта не сохранена") {
		t.Errorf("/accounts reply = %q", list)
	}
}

func TestHelpShowsAdminCommandsToAdminOnly(t *testing.T) {
	f := newBotFixture(t, stubBalances{})

	if got := lastText(t, f.say(7, "/help")); strings.Contains(got, "/status") {
		t.Errorf("user help lists admin commands: %q", got)
	}
	if got := lastText(t, f.say(adminID, "/help")); !strings.Contains(got, "/status") {
		t.Errorf("admin help misses admin commands: %q", got)
	}
}
