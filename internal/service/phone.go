package service

import (
	"fmt"
	"strings"

	"movie-shop/internal/models"
)

// NormalizePhone converts Kenyan mobile numbers to +254 form.
// Accepted inputs: +254..., 07.../01..., 7.../1..., 254...
// The result is always +254 followed by nine digits.
func NormalizePhone(text string) (string, error) {
	txt := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(text))

	var phone string
	switch {
	case strings.HasPrefix(txt, "+254"):
		phone = txt
	case strings.HasPrefix(txt, "07"), strings.HasPrefix(txt, "01"):
		phone = "+254" + txt[1:]
	case strings.HasPrefix(txt, "7"), strings.HasPrefix(txt, "1"):
		phone = "+254" + txt
	case strings.HasPrefix(txt, "254"):
		phone = "+" + txt
	}

	if len(phone) != 13 || !allDigits(phone[1:]) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, text)
	}
	return phone, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ParseAmount parses a positive amount typed by a buyer or an admin
func ParseAmount(text string) (models.Money, error) {
	amount, err := models.ParseMoney(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	return amount, nil
}
