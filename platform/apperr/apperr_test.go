package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusByKind(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{NotFound("missing"), http.StatusNotFound},
		{Validation("bad"), http.StatusBadRequest},
		{Conflict("stale"), http.StatusConflict},
		{Sync("not synced", errors.New("timeout")), http.StatusBadGateway},
		{Internal("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := tt.err.HTTPStatus(); got != tt.want {
			t.Errorf("%q: expected status %d, got %d", tt.err.Message, tt.want, got)
		}
	}
}

func TestGetKindFollowsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("advance opportunity: %w", Validation("reopen required"))

	if !Is(wrapped, KindValidation) {
		t.Fatalf("expected wrapped validation error to be detected, got kind %d", GetKind(wrapped))
	}
	if Is(errors.New("plain"), KindValidation) {
		t.Fatal("plain errors must report KindUnknown")
	}
}

func TestSyncErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Sync("saved locally, not yet synced", cause).WithOp("crm.push")

	if !errors.Is(err, cause) {
		t.Fatal("expected sync error to unwrap to its cause")
	}
	if want := "crm.push: saved locally, not yet synced: connection refused"; err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}
