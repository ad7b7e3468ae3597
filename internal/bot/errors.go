package bot

import (
	"errors"

	"avtomaster/internal/database"
	"avtomaster/internal/service"
)

func (b *Bot) getErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, database.ErrSlotTaken) {
		return "⚠️ Это время уже занято. Пожалуйста, выберите другой слот."
	}
	if errors.Is(err, database.ErrPastDate) {
		return "⚠️ Нельзя записаться на прошедшую дату."
	}
	if errors.Is(err, database.ErrDateTooFar) {
		return "⚠️ Так далеко вперёд запись не ведётся. Выберите более раннюю дату."
	}
	if errors.Is(err, database.ErrAlreadyProcessed) {
		return "⚠️ Эта заявка уже обработана."
	}
	if errors.Is(err, database.ErrNotTerminal) {
		return "⚠️ Удалить можно только отклонённую или отменённую запись."
	}
	if errors.Is(err, database.ErrVehicleHasBookings) {
		return "⚠️ У этого автомобиля есть активные записи. Сначала отмените их."
	}
	if errors.Is(err, database.ErrNotFound) {
		return "⚠️ Запись не найдена."
	}
	if errors.Is(err, service.ErrUnauthorized) {
		return "⚠️ Это не ваша запись."
	}
	if errors.Is(err, service.ErrInvalidVIN) {
		return "⚠️ VIN должен состоять из 17 букв и цифр. Попробуйте ещё раз."
	}
	if errors.Is(err, service.ErrInvalidYear) {
		return "⚠️ Проверьте год выпуска автомобиля."
	}

	return "❌ Произошла ошибка при обработке вашего запроса. Пожалуйста, попробуйте позже."
}
