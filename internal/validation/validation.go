package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/ysalek1982/skyworth-buddy-sub001/internal/models"
)

var (
	uuidRegex   = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	serialRegex = regexp.MustCompile(`^[0-9A-Z]{8,20}$`)
	emailRegex  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRegex  = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func ValidateClaim(req models.CreateClaimRequest) error {
	if err := validateSerialNumber(req.SerialNumber); err != nil {
		return err
	}

	if strings.TrimSpace(req.FullName) == "" {
		return &ValidationError{
			Field:   "full_name",
			Message: "is required",
		}
	}

	if strings.TrimSpace(req.NationalID) == "" {
		return &ValidationError{
			Field:   "national_id",
			Message: "is required",
		}
	}

	if err := validateEmail(req.Email); err != nil {
		return err
	}

	if err := validatePhone(req.Phone); err != nil {
		return err
	}

	if strings.TrimSpace(req.City) == "" {
		return &ValidationError{
			Field:   "city",
			Message: "is required",
		}
	}

	if req.PurchaseDate.IsZero() {
		return &ValidationError{
			Field:   "purchase_date",
			Message: "is required",
		}
	}

	if req.PurchaseDate.After(time.Now().Add(24 * time.Hour)) {
		return &ValidationError{
			Field:   "purchase_date",
			Message: "cannot be in the future",
		}
	}

	if req.PurchaseDate.Before(time.Now().AddDate(-1, 0, 0)) {
		return &ValidationError{
			Field:   "purchase_date",
			Message: "cannot be more than 1 year in the past",
		}
	}

	if req.ProductID != "" {
		if err := ValidateUUID(req.ProductID, "product_id"); err != nil {
			return err
		}
	}

	return nil
}

func ValidateProduct(product models.Product) error {
	if err := ValidateUUID(product.ID, "id"); err != nil {
		return err
	}

	if strings.TrimSpace(product.SKU) == "" {
		return &ValidationError{
			Field:   "sku",
			Message: "is required",
		}
	}

	if strings.TrimSpace(product.Name) == "" {
		return &ValidationError{
			Field:   "name",
			Message: "is required",
		}
	}

	return nil
}

// ValidateDecision checks that a decision is one of the two allowed values.
func ValidateDecision(decision string) error {
	if decision != "approve" && decision != "reject" {
		return &ValidationError{
			Field:   "decision",
			Message: "must be 'approve' or 'reject'",
		}
	}
	return nil
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

func ValidateUUID(id, fieldName string) error {
	if id == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	id = SanitizeString(id)

	if !uuidRegex.MatchString(strings.ToLower(id)) {
		return &ValidationError{
			Field:   fieldName,
			Message: "must be a valid UUID v4",
		}
	}

	return nil
}

func validateSerialNumber(serial string) error {
	if serial == "" {
		return &ValidationError{
			Field:   "serial_number",
			Message: "is required",
		}
	}

	serial = SanitizeString(serial)

	if !serialRegex.MatchString(serial) {
		return &ValidationError{
			Field:   "serial_number",
			Message: "must be 8-20 uppercase alphanumeric characters",
		}
	}

	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return &ValidationError{
			Field:   "email",
			Message: "is required",
		}
	}

	if !emailRegex.MatchString(email) {
		return &ValidationError{
			Field:   "email",
			Message: "must be a valid email address",
		}
	}

	return nil
}

func validatePhone(phone string) error {
	if phone == "" {
		return &ValidationError{
			Field:   "phone",
			Message: "is required",
		}
	}

	if !phoneRegex.MatchString(phone) {
		return &ValidationError{
			Field:   "phone",
			Message: "must be a valid phone number",
		}
	}

	return nil
}
