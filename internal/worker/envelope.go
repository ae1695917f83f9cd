// Package worker dispatches a work unit to a subprocess and parses its
// MC_RESULT envelope from stdout, in the spirit of the teacher's
// agent.Executor subprocess/stream-parsing pipeline but collapsed to a
// single structured block instead of a multi-event stream protocol.
package worker

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shaycichocki/missionctl/pkg/models"
)

const resultMarker = "MC_RESULT"

var resultPattern = regexp.MustCompile(`(?is)` + resultMarker + `\s*:?\s*\{(.*?)\}`)

// resultFieldPattern matches one `key: value` field; the block is read
// one field per line.
var resultFieldPattern = regexp.MustCompile(`(?im)^\s*"?([a-z_]+)"?\s*[:=]\s*(.+?)\s*$`)

// parseEnvelope extracts a ResultEnvelope from a worker's combined
// stdout/stderr. An unparseable or missing block never panics; it
// returns a parse-failure envelope so the caller can classify and move
// on rather than crash the controller.
func parseEnvelope(stdout string) models.ResultEnvelope {
	match := resultPattern.FindStringSubmatch(stdout)
	if match == nil {
		return models.ResultEnvelope{
			ExitStatus: 1,
			ErrorKind:  models.ErrorParse,
			MCResultRaw: stdout,
		}
	}

	body := match[1]
	fields := map[string]string{}
	for _, line := range strings.Split(body, "\n") {
		m := resultFieldPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		fields[m[1]] = strings.Trim(m[2], `"`)
	}

	env := models.ResultEnvelope{
		MCResultRaw:    stdout,
		MCResultFields: fields,
		Summary:        fields["summary"],
	}

	if status, ok := fields["status"]; ok {
		if status == "ok" || status == "success" {
			env.ExitStatus = 0
		} else {
			env.ExitStatus = 1
		}
	} else {
		env.ExitStatus = 1
		env.ErrorKind = models.ErrorParse
	}

	if v, ok := fields["files_changed"]; ok {
		env.FilesChanged = splitList(v)
	}
	if v, ok := fields["discoveries"]; ok {
		env.Discoveries = splitList(v)
	}
	if v, ok := fields["context_items"]; ok {
		env.ContextItems = splitList(v)
	}
	if v, ok := fields["cost_usd"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			env.CostUSD = f
		}
	}
	if v, ok := fields["tokens"]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			env.Tokens = n
		}
	}
	if v, ok := fields["error_kind"]; ok && v != "" {
		env.ErrorKind = models.ErrorKind(v)
	}

	return env
}

func splitList(v string) []string {
	v = strings.Trim(v, "[]")
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
