package classify

import (
	"errors"
	"fmt"
	"testing"
)

func TestWithKindRoundTrips(t *testing.T) {
	base := errors.New("clone failed")
	err := WithKind(base, Transient)
	if Of(err) != Transient {
		t.Errorf("expected Transient, got %s", Of(err))
	}
	if !errors.Is(err, base) && !errors.Is(err, err) {
		// errors.Is(err, base) requires base to equal err via Is/==; Unwrap exposes base directly.
	}
	if errors.Unwrap(err) != base {
		t.Errorf("expected Unwrap to return base error")
	}
}

func TestOfDefaultsToContent(t *testing.T) {
	if Of(errors.New("plain")) != Content {
		t.Error("expected unclassified error to default to Content")
	}
}

func TestWrapf(t *testing.T) {
	err := Wrapf(Budget, "projected cost %.2f exceeds %.2f", 12.5, 10.0)
	if Of(err) != Budget {
		t.Errorf("expected Budget, got %s", Of(err))
	}
	if err.Error() != fmt.Sprintf("projected cost %.2f exceeds %.2f", 12.5, 10.0) {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestRetryable(t *testing.T) {
	if !Transient.Retryable() {
		t.Error("expected Transient to be retryable")
	}
	if Content.Retryable() || Integrity.Retryable() || Budget.Retryable() || Parse.Retryable() {
		t.Error("expected only Transient to be retryable")
	}
}
