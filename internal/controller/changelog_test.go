package controller

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

func TestChangelogRecordIncludesAllFields(t *testing.T) {
	var buf bytes.Buffer
	cl := NewChangelog(zerolog.New(&buf))

	cl.Record(ChangelogEntry{
		UnitID:    "u-1",
		Kind:      "content",
		Summary:   "tests failed after merge",
		Workspace: "/tmp/ws-1",
	})

	out := buf.String()
	for _, want := range []string{`"unit_id":"u-1"`, `"kind":"content"`, `"workspace":"/tmp/ws-1"`, `"message":"tests failed after merge"`} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Fatalf("changelog line missing %q, got: %s", want, out)
		}
	}
}
