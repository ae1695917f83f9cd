package controller

import "github.com/rs/zerolog"

// ChangelogEntry is one line of the mission's durable failure record:
// spec.md §7 requires a unit id, a failure kind, a human summary, and a
// pointer to the workspace that held the unit, independent of whatever
// debug-level tracing the rest of the controller emits.
type ChangelogEntry struct {
	UnitID    string
	Kind      string
	Summary   string
	Workspace string
}

// Changelog is the mission's append-only failure record. It is
// distinct from the controller's debug logger: every entry here is a
// durable, greppable line an operator reviews after the mission stops,
// not a trace meant for live debugging.
type Changelog struct {
	log zerolog.Logger
}

// NewChangelog returns a Changelog that writes through log at info
// level, tagged so its lines are easy to grep out of a mixed log
// stream.
func NewChangelog(log zerolog.Logger) *Changelog {
	return &Changelog{log: log.With().Str("component", "changelog").Logger()}
}

// Record appends one failure entry.
func (c *Changelog) Record(e ChangelogEntry) {
	c.log.Info().
		Str("unit_id", e.UnitID).
		Str("kind", e.Kind).
		Str("workspace", e.Workspace).
		Msg(e.Summary)
}
