package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation       Kind = "validation_error"
	KindInvalidArgument  Kind = "invalid_argument"
	KindInvalidOperation Kind = "invalid_operation"
	KindInvalidState     Kind = "invalid_state"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindTooLarge         Kind = "too_large"
	KindIO               Kind = "io_failure"
	KindUnauthorized     Kind = "unauthorized"
	KindInternal         Kind = "internal"
)

// Сентинелы для errors.Is. InvalidArgument и InvalidOperation являются частными случаями ValidationError
var (
	ErrValidation       = errors.New("некорректные данные")
	ErrInvalidArgument  = fmt.Errorf("%w: недопустимый аргумент", ErrValidation)
	ErrInvalidOperation = fmt.Errorf("%w: недопустимая операция", ErrValidation)
	ErrInvalidState     = errors.New("операция недопустима в текущем состоянии")
	ErrForbidden        = errors.New("доступ запрещён")
	ErrNotFound         = errors.New("не найдено")
	ErrTooLarge         = errors.New("превышен допустимый размер")
	ErrIO               = errors.New("ошибка ввода-вывода")
	ErrUnauthorized     = errors.New("пользователь не авторизован")
	ErrInternal         = errors.New("внутренняя ошибка сервера")
)

var sentinels = map[Kind]error{
	KindValidation:       ErrValidation,
	KindInvalidArgument:  ErrInvalidArgument,
	KindInvalidOperation: ErrInvalidOperation,
	KindInvalidState:     ErrInvalidState,
	KindForbidden:        ErrForbidden,
	KindNotFound:         ErrNotFound,
	KindTooLarge:         ErrTooLarge,
	KindIO:               ErrIO,
	KindUnauthorized:     ErrUnauthorized,
	KindInternal:         ErrInternal,
}

// Error : ошибка предметной области с машиночитаемой причиной и разбивкой по полям
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && !isSentinel(e.Err) {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	errs := []error{sentinels[e.Kind]}
	if e.Err != nil && !isSentinel(e.Err) {
		errs = append(errs, e.Err)
	}
	return errs
}

// ReasonCode : уточнённая причина (например quota_exceeded), по умолчанию совпадает с Kind
func (e *Error) ReasonCode() string {
	if e.Reason != "" {
		return e.Reason
	}
	return string(e.Kind)
}

// WithField : добавляет ошибку конкретного поля
func (e *Error) WithField(field, message string) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
	return e
}

func isSentinel(err error) bool {
	for _, s := range sentinels {
		if err == s {
			return true
		}
	}
	return false
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return newError(KindValidation, message, nil)
}

func InvalidArgument(message string) *Error {
	return newError(KindInvalidArgument, message, nil)
}

func InvalidOperation(message string) *Error {
	return newError(KindInvalidOperation, message, nil)
}

func InvalidState(message string) *Error {
	return newError(KindInvalidState, message, nil)
}

func Forbidden(message string) *Error {
	return newError(KindForbidden, message, nil)
}

func NotFound(message string) *Error {
	return newError(KindNotFound, message, nil)
}

func TooLarge(message string) *Error {
	return newError(KindTooLarge, message, nil)
}

func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, message, nil)
}

func IO(message string, err error) *Error {
	return newError(KindIO, message, err)
}

func Internal(message string, err error) *Error {
	return newError(KindInternal, message, err)
}

// KindOf : возвращает Kind ошибки, для неизвестных ошибок KindInternal
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
