package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthenticated используется, когда у действия нет идентификатора голосующего.
	// Обработчик должен вернуть сигнал "требуется вход", а не скрывать ошибку.
	ErrUnauthenticated = errors.New("voter is not authenticated")

	// ErrForbidden используется, когда у пользователя недостаточно прав для действия.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrVotingClosed используется, когда участница не входит в открытую для голосования когорту.
	ErrVotingClosed = errors.New("voting is closed for this participant")

	// ErrInvalidRating используется, когда значение оценки выходит за допустимый диапазон.
	// Отклоняется до любого сетевого вызова.
	ErrInvalidRating = errors.New("rating value is out of range")

	// ErrInvalidStatus используется при попытке перевода участника в неизвестный статус.
	ErrInvalidStatus = errors.New("unknown admin status")

	// ErrIncompleteRejection используется, когда отклонение не содержит ни кода причины,
	// ни текстового пояснения. Такое отклонение блокируется до исправления.
	ErrIncompleteRejection = errors.New("rejection requires a reason code or a note")

	// ErrWriteFailed используется, когда подтверждающая запись не прошла.
	// Повтор безопасен: запись идемпотентна по ключу (voter, participant).
	ErrWriteFailed = errors.New("write failed, retry is safe")

	// ErrConflict используется для конфликтов состояния.
	ErrConflict = errors.New("resource state conflict")
)
