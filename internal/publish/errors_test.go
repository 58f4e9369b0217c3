package publish

import (
	"errors"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(ErrDuplicate, "text_post", "create", "status 403", base)

	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("error %v does not match ErrDuplicate", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("error %v lost the underlying cause", err)
	}
	want := "duplicate content: text_post: create: status 403: boom"
	if err.Error() != want {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "instagram_reel", "poll", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("error %v does not match ErrTransient", err)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{Wrap(ErrValidation, "x", "create", "too long", nil), false},
		{Wrap(ErrConfiguration, "x", "creds", "missing token", nil), false},
		{Wrap(ErrDuplicate, "x", "create", "again", nil), false},
		{Wrap(ErrRateLimited, "x", "create", "429", nil), true},
		{Wrap(ErrTransient, "x", "create", "502", nil), true},
		{errors.New("untagged"), true},
	}
	for _, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Errorf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
