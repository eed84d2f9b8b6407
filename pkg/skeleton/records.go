package skeleton

import (
	"fmt"
	"html"
	"sort"
	"strings"
)

// Flatten turns nested content into a flat token map. Nested maps prefix their keys
// with the parent key and "_", string lists become <li> items, and record lists are
// expanded with ExpandRecords. List values are also exposed as {key_items}.
func Flatten(data map[string]any) map[string]string {
	out := make(map[string]string)
	flatten(out, "", data)
	return out
}

func flatten(out map[string]string, prefix string, data map[string]any) {
	for key, value := range data {
		full := prefix + key
		switch v := value.(type) {
		case map[string]any:
			flatten(out, full+"_", v)
		case []string:
			out[full] = ExpandList(v)
			out[full+"_items"] = out[full]
		case []map[string]any:
			out[full] = ExpandRecords(v)
			out[full+"_items"] = out[full]
		case []any:
			out[full] = expandAny(v)
			out[full+"_items"] = out[full]
		case nil:
			out[full] = ""
		default:
			out[full] = fmt.Sprint(v)
		}
	}
}

// expandAny handles decoded JSON lists, which arrive as []any.
func expandAny(values []any) string {
	strs := make([]string, 0, len(values))
	recs := make([]map[string]any, 0, len(values))
	for _, v := range values {
		switch t := v.(type) {
		case string:
			strs = append(strs, t)
		case map[string]any:
			recs = append(recs, t)
		default:
			strs = append(strs, fmt.Sprint(t))
		}
	}
	if len(recs) > 0 && len(strs) == 0 {
		return ExpandRecords(recs)
	}
	return ExpandList(strs)
}

// ExpandRecords renders a list of records into repeated markup blocks. The block
// shape follows the record keys: {number, title} is a numbered step, {date, title}
// is a timeline event, anything else is a generic block.
func ExpandRecords(records []map[string]any) string {
	var sb strings.Builder
	for i, rec := range records {
		_, hasTitle := rec["title"]
		_, hasNumber := rec["number"]
		_, hasDate := rec["date"]
		switch {
		case hasTitle && hasNumber:
			fmt.Fprintf(&sb, `<div class="step"><div class="step-number">%s</div><div class="step-title">%s</div><div class="step-description">%s</div></div>`,
				text(rec["number"], fmt.Sprint(i+1)), text(rec["title"], ""), text(rec["description"], ""))
		case hasTitle && hasDate:
			fmt.Fprintf(&sb, `<div class="timeline-event"><div class="event-marker"></div><div class="event-date">%s</div><div class="event-title">%s</div><div class="event-description">%s</div></div>`,
				text(rec["date"], ""), text(rec["title"], ""), text(rec["description"], ""))
		default:
			sb.WriteString(`<div class="block">`)
			sb.WriteString(genericBody(rec))
			sb.WriteString(`</div>`)
		}
	}
	return sb.String()
}

// ExpandList renders plain strings as list items.
func ExpandList(values []string) string {
	var sb strings.Builder
	for _, v := range values {
		sb.WriteString("<li>")
		sb.WriteString(v)
		sb.WriteString("</li>")
	}
	return sb.String()
}

func text(v any, fallback string) string {
	if v == nil {
		return fallback
	}
	return fmt.Sprint(v)
}

func genericBody(rec map[string]any) string {
	if title, ok := rec["title"]; ok {
		body := `<div class="block-title">` + fmt.Sprint(title) + `</div>`
		if desc, ok := rec["description"]; ok {
			body += `<div class="block-description">` + fmt.Sprint(desc) + `</div>`
		}
		return body
	}
	keys := sortedKeys(rec)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, html.EscapeString(k)+": "+fmt.Sprint(rec[k]))
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(rec map[string]any) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
