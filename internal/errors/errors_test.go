package errors

import (
	"fmt"
	"testing"
)

func TestAtlasError_Error(t *testing.T) {
	err := &AtlasError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "memory not found",
	}

	expected := "NOT_FOUND: memory not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("lat out of range")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "lat out of range" {
		t.Errorf("Message = %q, want %q", err.Message, "lat out of range")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("group", "01HX")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["id"] != "01HX" {
		t.Errorf("Details[id] = %v, want %q", err.Details["id"], "01HX")
	}
	if err.Message != "group not found: 01HX" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewImportFailed(t *testing.T) {
	cause := fmt.Errorf("unexpected EOF")
	err := NewImportFailed("json", cause)

	if err.Code != ErrImportFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrImportFailed)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want cause", err.Unwrap())
	}
}

func TestNewQuotaExceeded(t *testing.T) {
	err := NewQuotaExceeded(100, 150)

	if err.Code != ErrQuotaExceeded {
		t.Errorf("Code = %q, want %q", err.Code, ErrQuotaExceeded)
	}
	if err.Details["capacity_bytes"] != 100 {
		t.Errorf("Details[capacity_bytes] = %v, want 100", err.Details["capacity_bytes"])
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		err := NewInternal(fmt.Errorf("disk I/O error"))
		if err.Message != "disk I/O error" {
			t.Errorf("Message = %q, want %q", err.Message, "disk I/O error")
		}
	})

	t.Run("nil error", func(t *testing.T) {
		err := NewInternal(nil)
		if err.Message != "internal error" {
			t.Errorf("Message = %q, want %q", err.Message, "internal error")
		}
	})
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{
			name: "matching code",
			err:  NewNotFound("memory", "x"),
			code: ErrNotFound,
			want: true,
		},
		{
			name: "different code",
			err:  NewNotFound("memory", "x"),
			code: ErrInternal,
			want: false,
		},
		{
			name: "wrapped atlas error",
			err:  fmt.Errorf("load: %w", NewStorageUnavailable(nil)),
			code: ErrStorageUnavailable,
			want: true,
		},
		{
			name: "plain error",
			err:  fmt.Errorf("boom"),
			code: ErrInternal,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			code: ErrInternal,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}
