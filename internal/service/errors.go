package service

import "errors"

// ErrUnauthorized — вызывающий не владелец записи и не мастер.
var ErrUnauthorized = errors.New("caller is not allowed to act on this booking")

// Причины, записываемые движком в reject_reason.
const (
	ReasonOwnerDeclined    = "клиент отклонил предложенное время"
	ReasonCancelledByOwner = "отменено клиентом"
)
