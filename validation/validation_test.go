package validation

import (
	"testing"

	"github.com/google/uuid"

	"github.com/kbukum/streamfetch/errors"
	"github.com/kbukum/streamfetch/protocol"
)

type descriptor struct {
	URL    string `json:"url" validate:"required,httpurl"`
	Method string `json:"method" validate:"httpmethod"`
}

func TestValidateValid(t *testing.T) {
	tests := []descriptor{
		{URL: "https://example.com/a?b=c", Method: "GET"},
		{URL: "http://127.0.0.1:8080/x", Method: "post"},
		{URL: "http://example.com", Method: ""},
	}
	for _, d := range tests {
		if err := Validate(d); err != nil {
			t.Errorf("expected %+v to be valid, got %v", d, err)
		}
	}
}

func TestValidateMissingURL(t *testing.T) {
	err := Validate(descriptor{Method: "GET"})
	if err == nil {
		t.Fatal("expected error for missing url")
	}
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeMissingField {
		t.Errorf("expected MISSING_FIELD, got %s", appErr.Code)
	}
	if appErr.Message != "url is required" {
		t.Errorf("expected 'url is required', got %q", appErr.Message)
	}
}

func TestValidateInvalid(t *testing.T) {
	tests := []struct {
		name string
		d    descriptor
	}{
		{"relative url", descriptor{URL: "/just/a/path"}},
		{"ftp scheme", descriptor{URL: "ftp://example.com/file"}},
		{"bad method", descriptor{URL: "https://example.com", Method: "TRACE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.d)
			if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestParams_ListenerID(t *testing.T) {
	tests := []struct {
		value string
		code  errors.ErrorCode
	}{
		{uuid.NewString(), ""},
		{"", errors.ErrCodeMissingField},
		{"   ", errors.ErrCodeMissingField},
		{"not-a-uuid", errors.ErrCodeInvalidInput},
		{uuid.Nil.String(), errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		err := NewParams().ListenerID("X-Listener-ID", tt.value).Err()
		if tt.code == "" {
			if err != nil {
				t.Errorf("value %q: expected no error, got %v", tt.value, err)
			}
			continue
		}
		if !errors.IsCode(err, tt.code) {
			t.Errorf("value %q: expected %s, got %v", tt.value, tt.code, err)
		}
	}
}

func TestParams_RequestID(t *testing.T) {
	tests := []struct {
		value string
		want  protocol.RequestID
		code  errors.ErrorCode
	}{
		{"1", 1, ""},
		{"9007199254740993", 9007199254740993, ""},
		{"", 0, errors.ErrCodeMissingField},
		{"abc", 0, errors.ErrCodeInvalidInput},
		{"0", 0, errors.ErrCodeInvalidInput},
		{"-4", 0, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		p := NewParams()
		got := p.RequestID("id", tt.value)
		err := p.Err()
		if got != tt.want {
			t.Errorf("value %q: expected id %d, got %d", tt.value, tt.want, got)
		}
		if (tt.code == "" && err != nil) || (tt.code != "" && !errors.IsCode(err, tt.code)) {
			t.Errorf("value %q: expected code %q, got %v", tt.value, tt.code, err)
		}
	}
}

func TestParams_CombinedErrors(t *testing.T) {
	p := NewParams().ListenerID("X-Listener-ID", "")
	p.RequestID("id", "x")
	err := p.Err()
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for several problems, got %v", err)
	}
	appErr, _ := errors.AsAppError(err)
	if appErr.Message != "id: must be a positive integer; X-Listener-ID: is required" {
		t.Errorf("unexpected message %q", appErr.Message)
	}
	if _, ok := appErr.Details["fields"]; !ok {
		t.Error("expected fields detail")
	}
}

func TestToSnakeCase(t *testing.T) {
	if got := toSnakeCase("StatusText"); got != "status_text" {
		t.Errorf("expected status_text, got %q", got)
	}
}
