package satstore

import (
	"errors"
	"testing"
)

func TestStorageErrorUnwrap(t *testing.T) {
	cause := errors.New("flash burned out")
	err := newErr("flight_plan_set", CategoryMedia, cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestIsCategory(t *testing.T) {
	err := newErr("status_get", CategoryVoting, nil)
	if !IsCategory(err, CategoryVoting) {
		t.Error("expected IsCategory to match CategoryVoting")
	}
	if IsCategory(err, CategoryBounds) {
		t.Error("expected IsCategory to reject a mismatched category")
	}
	if IsCategory(errors.New("plain error"), CategoryVoting) {
		t.Error("expected IsCategory to reject a non-StorageError")
	}
}

func TestORStatus(t *testing.T) {
	a := newErr("op_a", CategoryMedia, nil)
	if got := ORStatus(a, nil); got != a {
		t.Error("expected ORStatus to prefer the first non-nil error")
	}
	b := newErr("op_b", CategoryBounds, nil)
	if got := ORStatus(nil, b); got != b {
		t.Error("expected ORStatus to fall back to the second error")
	}
	if got := ORStatus(nil, nil); got != nil {
		t.Error("expected ORStatus(nil, nil) to be nil")
	}
}

func TestErrorCategoryString(t *testing.T) {
	cases := map[ErrorCategory]string{
		CategoryNotOpen:   "not-open",
		CategoryBounds:    "bounds",
		CategoryAlignment: "alignment",
		CategoryFull:      "full",
		CategoryMedia:     "media",
		CategoryVoting:    "voting",
	}
	for cat, want := range cases {
		if got := cat.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", int(cat), got, want)
		}
	}
}
