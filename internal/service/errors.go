package service

import (
	"errors"
	"fmt"

	"movie-shop/internal/models"
)

var (
	ErrIntentNotFound        = errors.New("payment intent not found")
	ErrDuplicateReference    = errors.New("external reference already registered")
	ErrUnresolvableReference = errors.New("callback carries no external reference")
	ErrUnknownReference      = errors.New("callback references an unknown intent")
	ErrBusinessFailure       = errors.New("payment reported unsuccessful")
	ErrDeliveryFailure       = errors.New("paid item could not be delivered")
	ErrInsufficientFunds     = errors.New("insufficient balance")
	ErrInvalidPhone          = errors.New("phone number not recognised")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrItemNotFound          = errors.New("item not found")
	ErrItemUnavailable       = errors.New("item has no content to deliver")
	ErrNonTerminalStatus     = errors.New("status is not terminal")
)

// InsufficientFundsError reports the balance that failed to cover a price
type InsufficientFundsError struct {
	Balance models.Money
	Price   models.Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, need %s", e.Balance, e.Price)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}
