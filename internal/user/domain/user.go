package domain

import (
	"strings"

	"github.com/dmehra2102/food-order-events/pkg/apperr"
)

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return apperr.Validation("user name is required")
	}
	if !strings.Contains(u.Email, "@") {
		return apperr.Validation("user email is invalid")
	}
	return nil
}
