package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid query", fmt.Errorf("parsing: %w", ErrInvalidQuery), http.StatusBadRequest},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"invalid model", fmt.Errorf("%w: unknown model %q", ErrInvalidModel, "tfidf"), http.StatusBadRequest},
		{"unsupported", Unsupported("And", "BM25", ""), http.StatusUnprocessableEntity},
		{"not found", ErrDocumentNotFound, http.StatusNotFound},
		{"store", Store("read postings", errors.New("conn reset")), http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"app error wins", New(ErrStore, http.StatusTeapot, "odd"), http.StatusTeapot},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestUnsupportedError(t *testing.T) {
	err := fmt.Errorf("evaluating: %w", Unsupported("Or", "BM25", "default score"))
	if !errors.Is(err, ErrUnsupported) {
		t.Error("should match ErrUnsupported")
	}
	var ue *UnsupportedError
	if !errors.As(err, &ue) || ue.Node != "Or" || ue.Model != "BM25" {
		t.Fatalf("errors.As = %+v", ue)
	}
	if !strings.Contains(err.Error(), "Or default score under BM25") {
		t.Errorf("message = %q", err.Error())
	}
	if got := Unsupported("And", "BM25", "").Error(); !strings.HasSuffix(got, "And score under BM25") {
		t.Errorf("default operation message = %q", got)
	}
}

func TestStore(t *testing.T) {
	if Store("op", nil) != nil {
		t.Error("Store(nil) should be nil")
	}
	cause := errors.New("conn reset")
	err := Store("read postings", cause)
	if !errors.Is(err, ErrStore) || !errors.Is(err, cause) {
		t.Errorf("Store should wrap both sentinel and cause: %v", err)
	}
}

func TestAppError(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "limit %d", -1)
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("AppError should unwrap to its sentinel")
	}
	if err.Error() != "invalid input: limit -1" {
		t.Errorf("Error() = %q", err.Error())
	}
}
