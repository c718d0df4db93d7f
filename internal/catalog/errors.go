package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrCategoryNotFound is returned when a category id does not exist.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrProductNotFound is returned when a product id does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrIntegrity matches every *IntegrityError via errors.Is.
	ErrIntegrity = errors.New("integrity violation")
	// ErrInvalidInput wraps field validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// IntegrityError explains why a write would break a catalog rule.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string { return e.Reason }

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

func integrity(reason string) error {
	return &IntegrityError{Reason: reason}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Reasons reported to API callers.
const (
	ReasonCategoryExists     = "category already exists"
	ReasonCategoryNameTaken  = "category name already exists"
	ReasonCategoryInUse      = "cannot delete a category that has associated products"
	ReasonCategoryNotPresent = "category does not exist"
)
