package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	if got := KindOf(New(KindNotFound, "missing")); got != KindNotFound {
		t.Errorf("KindOf = %v, want KindNotFound", got)
	}

	wrapped := fmt.Errorf("outer: %w", New(KindConflict, "duplicate"))
	if got := KindOf(wrapped); got != KindConflict {
		t.Errorf("KindOf wrapped = %v, want KindConflict", got)
	}

	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Errorf("KindOf plain = %v, want KindInternal", got)
	}
}

func TestMessageMasksInternal(t *testing.T) {
	if got := Message(New(KindInvalid, "bad input")); got != "bad input" {
		t.Errorf("Message = %q", got)
	}
	if got := Message(Wrap(KindInternal, "insert failed", errors.New("pq: boom"))); got != "internal server error" {
		t.Errorf("internal Message = %q, want masked", got)
	}
	if got := Message(errors.New("pq: boom")); got != "internal server error" {
		t.Errorf("plain Message = %q, want masked", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindInvalid, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindConflict, http.StatusConflict},
		{KindGateway, http.StatusBadGateway},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(New(tc.kind, "x")); got != tc.want {
			t.Errorf("HTTPStatus(kind %v) = %d, want %d", tc.kind, got, tc.want)
		}
	}
	if got := HTTPStatus(errors.New("plain")); got != http.StatusInternalServerError {
		t.Errorf("HTTPStatus(plain) = %d, want 500", got)
	}
}
