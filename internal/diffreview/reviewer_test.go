package diffreview

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger { return zerolog.Nop() }

type stubScorer struct {
	out string
	err error
}

func (s stubScorer) Score(ctx context.Context, prompt string) (string, error) { return s.out, s.err }

func TestReviewParsesWellFormedBlock(t *testing.T) {
	r := New(stubScorer{out: "REVIEW_RESULT {\n  alignment: 8\n  approach: 7\n  tests: 9\n  notes: \"solid\"\n}"}, noopLogger())
	rec := r.Review(context.Background(), "u1", "do the thing", "diff --git a b")

	if !rec.Parsed {
		t.Fatalf("expected parsed record, got %+v", rec)
	}
	if rec.Alignment != 8 || rec.Approach != 7 || rec.Tests != 9 {
		t.Errorf("unexpected scores: %+v", rec)
	}
	if rec.Notes != "solid" {
		t.Errorf("expected notes captured, got %q", rec.Notes)
	}
}

func TestReviewHandlesMissingMarkerWithoutError(t *testing.T) {
	r := New(stubScorer{out: "I think this change looks fine."}, noopLogger())
	rec := r.Review(context.Background(), "u1", "desc", "diff")

	if rec.Parsed {
		t.Fatalf("expected unparsed record for missing marker, got %+v", rec)
	}
	if rec.Notes == "" {
		t.Errorf("expected raw output preserved in notes")
	}
}

func TestReviewHandlesScorerError(t *testing.T) {
	r := New(stubScorer{err: errors.New("timeout")}, noopLogger())
	rec := r.Review(context.Background(), "u1", "desc", "diff")

	if rec.Parsed {
		t.Fatalf("expected unparsed record on scorer error, got %+v", rec)
	}
}

func TestReviewPromptEmbedsSharedMarker(t *testing.T) {
	p := ReviewPrompt("desc", "diff")
	if !markerPattern.MatchString(p) {
		t.Errorf("prompt does not contain a block the parser's own marker pattern would match:\n%s", p)
	}
}
