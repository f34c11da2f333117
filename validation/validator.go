package validation

import (
	"strings"

	"github.com/google/uuid"

	"github.com/kbukum/streamfetch/errors"
	"github.com/kbukum/streamfetch/protocol"
)

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Params checks the values of a bridge call that arrive outside the
// request descriptor: the listener header and the request id path
// parameter.
type Params struct {
	fields  []FieldError
	missing []string
}

// NewParams returns an empty checker.
func NewParams() *Params {
	return &Params{}
}

// ListenerID requires value to be a listener id as issued by the hub.
func (p *Params) ListenerID(field, value string) *Params {
	value = strings.TrimSpace(value)
	if value == "" {
		p.missing = append(p.missing, field)
		return p
	}
	if id, err := uuid.Parse(value); err != nil || id == uuid.Nil {
		p.add(field, "must be a listener id")
	}
	return p
}

// RequestID parses value as a request id. Ids start at 1; the returned id
// is meaningful only when Err reports nil.
func (p *Params) RequestID(field, value string) protocol.RequestID {
	if strings.TrimSpace(value) == "" {
		p.missing = append(p.missing, field)
		return 0
	}
	id, err := protocol.ParseRequestID(value)
	if err != nil || id <= 0 {
		p.add(field, "must be a positive integer")
		return 0
	}
	return id
}

// Err returns nil when every check passed. A lone missing value is
// MISSING_FIELD; anything else is INVALID_INPUT listing every field.
func (p *Params) Err() error {
	if len(p.fields) == 0 && len(p.missing) == 0 {
		return nil
	}
	if len(p.fields) == 0 && len(p.missing) == 1 {
		return errors.MissingField(p.missing[0])
	}

	all := append([]FieldError(nil), p.fields...)
	for _, f := range p.missing {
		all = append(all, FieldError{Field: f, Message: "is required"})
	}
	messages := make([]string, len(all))
	for i, e := range all {
		messages[i] = e.Field + ": " + e.Message
	}
	return errors.Validation(strings.Join(messages, "; ")).WithDetail("fields", all)
}

func (p *Params) add(field, message string) {
	p.fields = append(p.fields, FieldError{Field: field, Message: message})
}
