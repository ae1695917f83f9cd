package diffreview

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/shaycichocki/missionctl/pkg/models"
)

// Scorer is the lightweight LLM call that produces review text for a
// diff. Implementations must embed reviewMarker in their prompt
// exactly as ReviewPrompt does, never a hand-rolled variant.
type Scorer interface {
	Score(ctx context.Context, prompt string) (string, error)
}

// Reviewer runs diff review fire-and-forget after promotion.
type Reviewer struct {
	scorer Scorer
	log    zerolog.Logger
}

// New creates a Reviewer. log is expected to already carry mission-scoped fields.
func New(scorer Scorer, log zerolog.Logger) *Reviewer {
	return &Reviewer{scorer: scorer, log: log}
}

// ReviewPrompt builds the prompt sent to the scorer, embedding the one
// shared marker constant so the parser can find the block it produces.
func ReviewPrompt(unitDescription, diff string) string {
	return fmt.Sprintf(
		"You are reviewing a code change for a work unit.\n\nUnit: %s\n\nDiff:\n%s\n\n"+
			"Respond with a %s block exactly in this shape:\n"+
			"%s {\n  alignment: <1-10>\n  approach: <1-10>\n  tests: <1-10>\n  notes: \"<one line>\"\n}\n",
		unitDescription, diff, reviewMarker, reviewMarker,
	)
}

// Review scores one promoted unit's diff and never returns an error to
// the caller: a failure becomes an unparsed ReviewRecord so a flaky
// scorer or a marker drift never blocks the merge pipeline.
func (r *Reviewer) Review(ctx context.Context, unitID, unitDescription, diff string) models.ReviewRecord {
	rec := models.ReviewRecord{UnitID: unitID, CreatedAt: time.Now()}

	if r.scorer == nil {
		rec.Notes = "no scorer configured"
		return rec
	}

	raw, err := r.scorer.Score(ctx, ReviewPrompt(unitDescription, diff))
	if err != nil {
		r.log.Warn().Err(err).Str("unit_id", unitID).Msg("diff review scorer call failed")
		rec.Notes = err.Error()
		return rec
	}

	parsed, ok := parse(raw)
	if !ok {
		r.log.Warn().Str("unit_id", unitID).Str("raw", raw).Msg("diff review marker parse failed")
		rec.Notes = raw
		return rec
	}

	parsed.UnitID = unitID
	parsed.CreatedAt = rec.CreatedAt
	return parsed
}

// parse extracts a ReviewRecord from raw scorer output. It returns
// ok=false, never panics, on any malformed or missing block.
func parse(raw string) (models.ReviewRecord, bool) {
	block := markerPattern.FindStringSubmatch(raw)
	if block == nil {
		return models.ReviewRecord{}, false
	}
	body := block[1]

	fields := map[string]int{}
	for _, m := range fieldPattern.FindAllStringSubmatch(body, -1) {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		fields[m[1]] = n
	}
	if len(fields) != 3 {
		return models.ReviewRecord{}, false
	}

	notes := ""
	if m := notesPattern.FindStringSubmatch(body); m != nil {
		notes = m[1]
	}

	rec := models.ReviewRecord{
		Alignment: fields["alignment"],
		Approach:  fields["approach"],
		Tests:     fields["tests"],
		Notes:     notes,
		Parsed:    true,
	}
	return rec, true
}
