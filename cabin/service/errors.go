package service

import (
	"errors"

	"github.com/wricardo/cabinsmart/cabin/store"
)

var (
	ErrSeatNotFound     = store.ErrSeatNotFound
	ErrMissingSeatID    = errors.New("seat ID required")
	ErrAlreadyQueued    = errors.New("seat already in the bathroom queue")
	ErrNotQueued        = errors.New("seat not in the bathroom queue")
	ErrAlreadyOccupying = errors.New("seat already occupies the bathroom")
	ErrInvalidAction    = errors.New("invalid door sensor action")
	ErrMissingMessage   = errors.New("announcement message required")
)

// IsClientError reports whether err is a request error that should be
// reported to the caller rather than treated as an internal failure.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrSeatNotFound,
		ErrMissingSeatID,
		ErrAlreadyQueued,
		ErrNotQueued,
		ErrAlreadyOccupying,
		ErrInvalidAction,
		ErrMissingMessage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// UserMessage returns the passenger-facing text for err.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingSeatID):
		return "ID de asiento requerido"
	case errors.Is(err, ErrSeatNotFound):
		return "Asiento no encontrado"
	case errors.Is(err, ErrAlreadyQueued):
		return "Ya estás en la cola"
	case errors.Is(err, ErrNotQueued):
		return "No encontrado en la cola"
	case errors.Is(err, ErrAlreadyOccupying):
		return "Ya estás en el baño"
	case errors.Is(err, ErrInvalidAction):
		return "Acción de sensor inválida"
	case errors.Is(err, ErrMissingMessage):
		return "Mensaje requerido"
	default:
		return "Error interno del servidor"
	}
}
