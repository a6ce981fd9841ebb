// Package store implements the Memory Store (spec §4.A): the authoritative,
// content-addressed record of each memory on disk as one file with a
// structured header plus a body, atomic create/update/archive, and
// path-safe lookup. No teacher file models this directly — the teacher
// keeps memories as SQL rows — so the on-disk format is new, but the
// write-temp-then-rename discipline and defensive field-merging follow the
// same care the teacher's sqlite/memory_store.go takes around upserts.
package store

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/scrypster/mnemora/pkg/mnemerr"
	"github.com/scrypster/mnemora/pkg/types"
)

const headerDelimiter = "---"

// encode renders m as "--- header lines --- \n\n body". Header keys are
// written in a fixed order for readable diffs, followed by any unrecognised
// Extra keys sorted for determinism.
func encode(m *types.Memory) []byte {
	var b strings.Builder
	b.WriteString(headerDelimiter + "\n")

	writeField(&b, "id", m.ID)
	writeField(&b, "created", m.Created.UTC().Format(time.RFC3339Nano))
	writeField(&b, "updated", m.Updated.UTC().Format(time.RFC3339Nano))
	writeField(&b, "project_id", m.ProjectID)
	writeField(&b, "scope", string(m.Scope))
	writeField(&b, "status", string(m.Status))
	writeField(&b, "importance", strconv.FormatFloat(m.Importance, 'f', -1, 64))
	writeField(&b, "confidence", strconv.FormatFloat(m.Confidence, 'f', -1, 64))
	writeField(&b, "tags", strings.Join(m.Tags, ","))
	if m.SessionID != "" {
		writeField(&b, "session_id", m.SessionID)
	}
	if m.SourceSessionID != "" {
		writeField(&b, "source_session_id", m.SourceSessionID)
	}
	writeField(&b, "schema_version", strconv.Itoa(m.SchemaVersion))

	if len(m.Extra) > 0 {
		keys := make([]string, 0, len(m.Extra))
		for k := range m.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			writeField(&b, k, m.Extra[k])
		}
	}

	b.WriteString(headerDelimiter + "\n\n")
	b.WriteString(m.Content)
	return []byte(b.String())
}

func writeField(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "%s: %s\n", key, value)
}

// knownFields is used by decode to route recognised header keys onto their
// typed struct fields; anything else lands in Extra.
var knownFields = map[string]bool{
	"id": true, "created": true, "updated": true, "project_id": true,
	"scope": true, "status": true, "importance": true, "confidence": true,
	"tags": true, "session_id": true, "source_session_id": true,
	"schema_version": true,
}

// decode parses the header+body wire format produced by encode. It returns
// mnemerr.ErrCorruptRecord wrapped with detail when the header delimiters or
// a required field are malformed.
func decode(data []byte) (*types.Memory, error) {
	text := string(data)
	if !strings.HasPrefix(text, headerDelimiter+"\n") {
		return nil, fmt.Errorf("%w: missing header delimiter", mnemerr.ErrCorruptRecord)
	}
	rest := text[len(headerDelimiter)+1:]

	end := strings.Index(rest, "\n"+headerDelimiter+"\n")
	if end == -1 {
		return nil, fmt.Errorf("%w: unterminated header", mnemerr.ErrCorruptRecord)
	}
	headerBlock := rest[:end]
	body := rest[end+len("\n"+headerDelimiter+"\n"):]
	body = strings.TrimPrefix(body, "\n")

	m := &types.Memory{Extra: map[string]string{}}

	scanner := bufio.NewScanner(strings.NewReader(headerBlock))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		sep := strings.Index(line, ":")
		if sep == -1 {
			return nil, fmt.Errorf("%w: malformed header line %q", mnemerr.ErrCorruptRecord, line)
		}
		key := strings.TrimSpace(line[:sep])
		value := strings.TrimSpace(line[sep+1:])

		switch key {
		case "id":
			m.ID = value
		case "created":
			t, err := time.Parse(time.RFC3339Nano, value)
			if err != nil {
				return nil, fmt.Errorf("%w: bad created timestamp: %v", mnemerr.ErrCorruptRecord, err)
			}
			m.Created = t
		case "updated":
			t, err := time.Parse(time.RFC3339Nano, value)
			if err != nil {
				return nil, fmt.Errorf("%w: bad updated timestamp: %v", mnemerr.ErrCorruptRecord, err)
			}
			m.Updated = t
		case "project_id":
			m.ProjectID = value
		case "scope":
			m.Scope = types.Scope(value)
		case "status":
			m.Status = types.Status(value)
		case "importance":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad importance: %v", mnemerr.ErrCorruptRecord, err)
			}
			m.Importance = f
		case "confidence":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad confidence: %v", mnemerr.ErrCorruptRecord, err)
			}
			m.Confidence = f
		case "tags":
			if value != "" {
				m.Tags = strings.Split(value, ",")
			}
		case "session_id":
			m.SessionID = value
		case "source_session_id":
			m.SourceSessionID = value
		case "schema_version":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("%w: bad schema_version: %v", mnemerr.ErrCorruptRecord, err)
			}
			m.SchemaVersion = n
		default:
			m.Extra[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", mnemerr.ErrCorruptRecord, err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("%w: missing id field", mnemerr.ErrCorruptRecord)
	}

	m.Content = body
	return m, nil
}
