package survey

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Top-level keys of a survey record
const (
	KeyIdent       = "ident"
	KeyEligibility = "certificat-indigence"
	KeyAttachments = "_hamed_attachments"
)

// Record one household survey submission: dotted/slashed field paths to
// scalars, or to lists of sub-records for repeated groups.
// A Record is never modified by the import pipeline.
type Record map[string]any

// Ident unique submission identifier
func (r Record) Ident() string {
	if v := r.Str(KeyIdent); v != nil {
		return strings.TrimSpace(*v)
	}
	return ""
}

// Eligible reports the indigence flag
func (r Record) Eligible() bool {
	return truthy(r[KeyEligibility])
}

// Str returns the value at path as text, nil when absent or null.
// Numbers are rendered without exponent so years survive JSON decoding.
func (r Record) Str(path string) *string {
	v, ok := r[path]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case json.Number:
		s = val.String()
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case bool:
		s = strconv.FormatBool(val)
	default:
		return nil
	}
	return &s
}

// Text returns the value at path or "" when absent
func (r Record) Text(path string) string {
	if v := r.Str(path); v != nil {
		return *v
	}
	return ""
}

// Group returns the repeated group stored at path. Entries that are not
// objects are skipped.
func (r Record) Group(path string) []Record {
	return asRecords(r[path])
}

// HeadAttachments returns the household head's attachment entries,
// every top-level attachment except the spouse and child groups, by key order.
func (r Record) HeadAttachments(groupKeys ...string) []Record {
	all := asRecord(r[KeyAttachments])
	if all == nil {
		return nil
	}
	skip := make(map[string]struct{}, len(groupKeys))
	for _, k := range groupKeys {
		skip[k] = struct{}{}
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		if _, ok := skip[k]; ok {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		if rec := asRecord(all[k]); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// GroupAttachments returns the attachment entries of member index of group
func (r Record) GroupAttachments(group string, index int) []Record {
	all := asRecord(r[KeyAttachments])
	if all == nil {
		return nil
	}
	members, ok := all[group].([]any)
	if !ok || index < 0 || index >= len(members) {
		return nil
	}
	entry := asRecord(members[index])
	keys := make([]string, 0, len(entry))
	for k := range entry {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		if rec := asRecord(entry[k]); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// Slug returns labels.slug of an attachment entry
func (r Record) Slug() string {
	labels := asRecord(r["labels"])
	if labels == nil {
		return ""
	}
	return labels.Text("slug")
}

func asRecord(v any) Record {
	switch m := v.(type) {
	case Record:
		return m
	case map[string]any:
		return Record(m)
	default:
		return nil
	}
}

func asRecords(v any) []Record {
	switch list := v.(type) {
	case []Record:
		return list
	case []map[string]any:
		out := make([]Record, 0, len(list))
		for _, m := range list {
			out = append(out, Record(m))
		}
		return out
	case []any:
		out := make([]Record, 0, len(list))
		for _, item := range list {
			if rec := asRecord(item); rec != nil {
				out = append(out, rec)
			}
		}
		return out
	default:
		return nil
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		s := strings.ToLower(strings.TrimSpace(val))
		return s != "" && s != "false" && s != "0" && s != "non" && s != "no"
	case float64:
		return val != 0
	case json.Number:
		f, err := val.Float64()
		return err == nil && f != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
