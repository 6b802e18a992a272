package telegram

import (
	"fmt"
	"strings"
	"time"

	"payment_notification_bot/internal/app"
	"payment_notification_bot/internal/domain/account"

	"github.com/shopspring/decimal"
	"gopkg.in/telebot.v3"
)

const btnGetBalanceText = "Получить баланс"

const historyLimit = 10

const (
	msgSendTextMessage  = "Пожалуйста, отправьте текстовое сообщение с номером карты."
	msgCardOnlyDigits   = "Номер карты должен содержать только цифры. Попробуйте еще раз:"
	msgNoCardSaved      = "Сначала нужно сохранить номер карты.\nИспользуйте команду /start"
	msgGettingBalance   = "Получаю баланс..."
	msgBalanceError     = "Не удалось получить баланс. Проверьте правильность номера карты.\nИспользуйте /start чтобы ввести номер заново."
	msgInternalError    = "Произошла ошибка. Пожалуйста, попробуйте позже."
	msgUnknownInput     = "Не понимаю сообщение. Используйте /help для списка команд."
	msgHistoryEmpty     = "История баланса пуста. Нажмите «" + btnGetBalanceText + "», чтобы получить баланс."
	msgNotAuthorized    = "Ошибка: У вас нет прав для выполнения этой команды."
	msgNoActiveWindow   = "Сейчас нет активного окна выплаты."
	msgNoAccountsListed = "Зарегистрированных пользователей нет."
)

func mainKeyboard() *telebot.ReplyMarkup {
	menu := &telebot.ReplyMarkup{ResizeKeyboard: true}
	menu.Reply(menu.Row(menu.Text(btnGetBalanceText)))
	return menu
}

func startWithCard(accountNumber string) string {
	return fmt.Sprintf("Привет! У вас уже сохранена карта: %s\n\nВыберите действие с помощью кнопок ниже:", accountNumber)
}

func startAskCard(cardLength int) string {
	return fmt.Sprintf("Привет! Я бот для проверки баланса карты DNB.\n\nПожалуйста, введите номер вашей карты (%d цифр):", cardLength)
}

func askCard(cardLength int) string {
	return fmt.Sprintf("Введите новый номер карты (%d цифр):", cardLength)
}

func cardWrongLength(cardLength, entered int) string {
	return fmt.Sprintf("Номер карты должен содержать %d цифр. Вы ввели %d цифр.\nПопробуйте еще раз:", cardLength, entered)
}

func cardSaved(cardNumber string) string {
	return fmt.Sprintf("Номер карты %s успешно сохранен!\n\nТеперь вы можете использовать кнопки ниже для получения информации:", cardNumber)
}

func balanceMessage(balance decimal.Decimal) string {
	return fmt.Sprintf("Баланс вашей карты: %s NOK", balance.StringFixed(2))
}

func paymentReceived(amount decimal.Decimal) string {
	return fmt.Sprintf("Выплата получена! Сумма: %s NOK", amount.StringFixed(2))
}

func helpMessage(isAdmin bool) string {
	var help strings.Builder
	help.WriteString("Я слежу за выплатами на вашу карту DNB и сообщу, когда выплата поступит.\n\n")
	help.WriteString("/start - сохранить номер карты или показать сохраненную\n")
	help.WriteString("/card - ввести номер карты заново\n")
	help.WriteString("/history - последние проверки баланса\n")
	help.WriteString("/help - показать это сообщение\n")
	help.WriteString("Кнопка «" + btnGetBalanceText + "» - текущий баланс карты")
	if isAdmin {
		help.WriteString("\n\nКоманды администратора:\n")
		help.WriteString("/status - активная выплата и отправленные уведомления\n")
		help.WriteString("/accounts - зарегистрированные пользователи")
	}
	return help.String()
}

func historyMessage(history []*account.BalanceSnapshot, loc *time.Location) string {
	var msg strings.Builder
	msg.WriteString("Последние проверки баланса:\n\n")
	for _, snapshot := range history {
		fmt.Fprintf(&msg, "%s: %s NOK\n", snapshot.CreatedAt.In(loc).Format("02.01.2006 15:04"), snapshot.Balance.StringFixed(2))
	}
	return strings.TrimRight(msg.String(), "\n")
}

func statusMessage(status *app.Status, loc *time.Location) string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "Время: %s (%s)\n", status.Now.In(loc).Format("02.01.2006 15:04"), loc)
	fmt.Fprintf(&msg, "Пользователей: %d, с картой: %d\n\n", status.Accounts, status.Registered)

	if status.Occurrence == nil {
		msg.WriteString(msgNoActiveWindow)
		return msg.String()
	}

	occ := status.Occurrence
	fmt.Fprintf(&msg, "Выплата: %s (окно %s - %s)\n",
		occ.Date.Format("02.01.2006"),
		occ.Window.Start.Format("02.01.2006"),
		occ.Window.End.Format("02.01.2006"))
	fmt.Fprintf(&msg, "Выплата получена: %d из %d", len(status.Notified), status.Registered)
	for _, rec := range status.Notified {
		fmt.Fprintf(&msg, "\n%d: %s NOK, %s", rec.ChatID, rec.Amount.StringFixed(2), rec.RecordedAt.In(loc).Format("02.01.2006 15:04"))
	}
	return msg.String()
}

func accountsMessage(accounts []*account.Account) string {
	if len(accounts) == 0 {
		return msgNoAccountsListed
	}
	var msg strings.Builder
	fmt.Fprintf(&msg, "Пользователи (%d):\n", len(accounts))
	for _, acc := range accounts {
		number := "карта не сохранена"
		if acc.HasAccountNumber() {
			number = maskAccountNumber(acc.AccountNumber)
		}
		fmt.Fprintf(&msg, "\n%d: %s", acc.ChatID, number)
	}
	return msg.String()
}

// maskAccountNumber keeps the last four digits.
func maskAccountNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
