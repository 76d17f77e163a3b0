package model

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateNode checks the node's id, content and metadata against their tags.
func ValidateNode(n Node) error {
	if n.Content == nil {
		return fmt.Errorf("node %s: content is required", n.ID)
	}
	if err := validate.Struct(n); err != nil {
		return fmt.Errorf("node %s: %w", n.ID, formatValidationError(err))
	}
	return validateMetadata(n.Metadata)
}

// ValidateEdge checks the edge's endpoints, relation and metadata.
func ValidateEdge(e Edge) error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("edge %s: %w", e.ID, formatValidationError(err))
	}
	return validateMetadata(e.Metadata)
}

// ValidateReceipt checks a compilation receipt.
func ValidateReceipt(r Receipt) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("receipt: %w", formatValidationError(err))
	}
	return nil
}

func validateMetadata(m Metadata) error {
	if m.HumanSignature == nil {
		return nil
	}
	if err := validate.Struct(m.HumanSignature); err != nil {
		return fmt.Errorf("human_signature: %w", formatValidationError(err))
	}
	return nil
}

func formatValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Namespace())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s must be within [0,1]", field)
	case "len", "hexadecimal", "lowercase":
		return fmt.Sprintf("%s must be a 64-character lowercase hex hash", field)
	case "uuid":
		return fmt.Sprintf("%s must be a uuid", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
