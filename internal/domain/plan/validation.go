package plan

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator"
)

var validate = validator.New()

// Validate checks the structural rules of a plan order.
func Validate(order *Order) error {
	if order == nil {
		return fmt.Errorf("empty plan")
	}
	if err := validate.Struct(order); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid plan: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid plan: %w", err)
	}
	return nil
}
