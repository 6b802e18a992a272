package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"payment_notification_bot/internal/app"
	"payment_notification_bot/internal/domain/account"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// cardInput remembers the chats that were asked to type a card number.
type cardInput struct {
	mu      sync.Mutex
	waiting map[int64]struct{}
}

func newCardInput() *cardInput {
	return &cardInput{waiting: make(map[int64]struct{})}
}

func (s *cardInput) expect(chatID int64) {
	s.mu.Lock()
	s.waiting[chatID] = struct{}{}
	s.mu.Unlock()
}

func (s *cardInput) done(chatID int64) {
	s.mu.Lock()
	delete(s.waiting, chatID)
	s.mu.Unlock()
}

func (s *cardInput) isWaiting(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.waiting[chatID]
	return ok
}

// RegisterBotCommands registers the handlers available to every user:
// card registration, balance lookups and balance history.
func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	accountService *app.AccountService,
	adminService *app.AdminService,
	loc *time.Location,
	baseLogger *logrus.Entry,
) {
	input := newCardInput()
	userLogger := baseLogger.WithField("handler_group", "user")

	b.Handle("/start", func(c telebot.Context) error {
		chatID := c.Chat().ID
		logCtx := userLogger.WithField("command", "/start").WithField("chat_id", chatID)
		logCtx.Info("Processing /start command")

		acc, err := accountService.Get(ctx, chatID)
		if err == nil && acc.HasAccountNumber() {
			input.done(chatID)
			logCtx.Info("User already has a card")
			return c.Send(startWithCard(acc.AccountNumber), mainKeyboard())
		}
		if err != nil && !errors.Is(err, account.ErrAccountNotFound) {
			logCtx.WithError(err).Error("Error loading account for /start command")
			return c.Send(msgInternalError)
		}

		logCtx.Info("Asking user for a card number")
		input.expect(chatID)
		return c.Send(startAskCard(accountService.CardLength()))
	})

	b.Handle("/card", func(c telebot.Context) error {
		chatID := c.Chat().ID
		userLogger.WithField("command", "/card").WithField("chat_id", chatID).Info("Asking user for a new card number")
		input.expect(chatID)
		return c.Send(askCard(accountService.CardLength()))
	})

	b.Handle("/help", func(c telebot.Context) error {
		userLogger.WithField("command", "/help").WithField("chat_id", c.Chat().ID).Info("Processing /help command")
		return c.Send(helpMessage(adminService.IsAdmin(c.Sender().ID)))
	})

	b.Handle("/history", func(c telebot.Context) error {
		chatID := c.Chat().ID
		logCtx := userLogger.WithField("command", "/history").WithField("chat_id", chatID)

		history, err := accountService.History(ctx, chatID, historyLimit)
		if err != nil {
			logCtx.WithError(err).Error("Failed to load balance history")
			return c.Send(msgInternalError)
		}
		if len(history) == 0 {
			return c.Send(msgHistoryEmpty)
		}
		logCtx.WithField("entries", len(history)).Info("Balance history sent")
		return c.Send(historyMessage(history, loc))
	})

	b.Handle(btnGetBalanceText, func(c telebot.Context) error {
		chatID := c.Chat().ID
		logCtx := userLogger.WithField("handler", "balance").WithField("chat_id", chatID)

		acc, err := accountService.Get(ctx, chatID)
		if err != nil && !errors.Is(err, account.ErrAccountNotFound) {
			logCtx.WithError(err).Error("Error loading account for balance request")
			return c.Send(msgInternalError)
		}
		if err != nil || !acc.HasAccountNumber() {
			return c.Send(msgNoCardSaved)
		}

		status, err := c.Bot().Send(c.Recipient(), msgGettingBalance)
		if err != nil {
			return err
		}

		reply := msgBalanceError
		balance, err := accountService.Balance(ctx, chatID)
		if err != nil {
			logCtx.WithError(err).Warn("Failed to fetch balance")
		} else {
			logCtx.Info("Balance sent")
			reply = balanceMessage(balance)
		}

		if _, err := c.Bot().Edit(status, reply); err != nil {
			logCtx.WithError(err).Warn("Failed to edit status message, sending a new one")
			return c.Send(reply)
		}
		return nil
	})

	b.Handle(telebot.OnText, func(c telebot.Context) error {
		chatID := c.Chat().ID
		if !input.isWaiting(chatID) {
			return c.Send(msgUnknownInput)
		}
		logCtx := userLogger.WithField("handler", "card_input").WithField("chat_id", chatID)

		cardNumber := strings.TrimSpace(c.Text())
		_, err := accountService.Register(ctx, chatID, cardNumber)
		switch {
		case errors.Is(err, app.ErrInvalidCardNumber):
			logCtx.Info("Card number rejected: not digits")
			return c.Send(msgCardOnlyDigits)
		case errors.Is(err, app.ErrCardNumberLength):
			logCtx.WithField("length", len(cardNumber)).Info("Card number rejected: wrong length")
			return c.Send(cardWrongLength(accountService.CardLength(), len(cardNumber)))
		case err != nil:
			logCtx.WithError(err).Error("Failed to register card")
			return c.Send(msgInternalError)
		}

		input.done(chatID)
		return c.Send(cardSaved(cardNumber), mainKeyboard())
	})

	nonText := func(c telebot.Context) error {
		if !input.isWaiting(c.Chat().ID) {
			return nil
		}
		return c.Send(msgSendTextMessage)
	}
	for _, endpoint := range []string{telebot.OnPhoto, telebot.OnDocument, telebot.OnSticker, telebot.OnVoice, telebot.OnVideo, telebot.OnContact, telebot.OnLocation} {
		b.Handle(endpoint, nonText)
	}
}
