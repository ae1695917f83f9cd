// Package diffreview scores promoted diffs with a lightweight LLM call
// and parses the result against a single shared marker definition, so
// the prompt and the parser can never drift apart the way the teacher's
// CAO WHEN/DO/RESULT markers once did.
package diffreview

import "regexp"

// reviewMarker is the one literal both the prompt builder and the
// parser derive from. Changing it here changes both sides at once.
const reviewMarker = "REVIEW_RESULT"

// markerPattern locates the block following reviewMarker. It is
// intentionally permissive about internal whitespace and case, since
// the text comes back from an LLM rather than a fixed-format tool.
var markerPattern = regexp.MustCompile(`(?is)` + reviewMarker + `\s*:?\s*\{(.*?)\}`)

var fieldPattern = regexp.MustCompile(`(?im)^\s*"?(alignment|approach|tests)"?\s*[:=]\s*(\d+)`)

var notesPattern = regexp.MustCompile(`(?im)^\s*"?notes"?\s*[:=]\s*"?([^"\n]*)"?\s*$`)
