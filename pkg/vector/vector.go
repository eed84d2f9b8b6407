// Package vector accepts, repairs and wraps SVG artifacts produced by the backend.
package vector

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Namespace is the SVG XML namespace.
const Namespace = "http://www.w3.org/2000/svg"

// InvalidError explains why an artifact was rejected.
type InvalidError struct {
	Reason string
	Err    error
}

func (e *InvalidError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid svg: %s: %v", e.Reason, e.Err)
	}
	return "invalid svg: " + e.Reason
}

func (e *InvalidError) Unwrap() error {
	return e.Err
}

// Validate accepts svg when the trimmed text starts with <svg, ends with </svg>, is
// well-formed XML with a single root, and the root is svg in the SVG namespace.
// Namespace prefixes must be declared in scope, so xlink:href without xmlns:xlink
// is rejected.
func Validate(svg string) error {
	s := strings.TrimSpace(svg)
	switch {
	case s == "":
		return &InvalidError{Reason: "empty content"}
	case !strings.HasPrefix(s, "<svg"):
		return &InvalidError{Reason: "does not start with <svg"}
	case !strings.HasSuffix(s, "</svg>"):
		return &InvalidError{Reason: "does not end with </svg>"}
	}

	dec := xml.NewDecoder(strings.NewReader(s))
	depth, roots := 0, 0
	var scope namespaceScope
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &InvalidError{Reason: "not well-formed", Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					return &InvalidError{Reason: "multiple root elements"}
				}
				if t.Name.Local != "svg" {
					return &InvalidError{Reason: fmt.Sprintf("root element is <%s>", t.Name.Local)}
				}
				if t.Name.Space != Namespace {
					return &InvalidError{Reason: "missing svg namespace"}
				}
			}
			if prefix, ok := scope.push(t); !ok {
				return &InvalidError{Reason: fmt.Sprintf("unbound namespace prefix %q on <%s>", prefix, t.Name.Local)}
			}
			depth++
		case xml.EndElement:
			scope.pop()
			depth--
		case xml.CharData:
			if depth == 0 && len(strings.TrimSpace(string(t))) > 0 {
				return &InvalidError{Reason: "text outside root element"}
			}
		}
	}
	if depth != 0 {
		return &InvalidError{Reason: "unclosed elements"}
	}
	return nil
}

// xmlNamespace is the namespace the decoder gives the reserved xml prefix.
const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

// namespaceScope tracks the namespace URIs declared by open elements. The decoder
// resolves declared prefixes to their URI and leaves undeclared ones as the bare
// prefix, so any other Name.Space is an unbound prefix.
type namespaceScope struct {
	declared map[string]int
	frames   [][]string
}

func (n *namespaceScope) push(el xml.StartElement) (string, bool) {
	if n.declared == nil {
		n.declared = make(map[string]int)
	}
	var frame []string
	for _, a := range el.Attr {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			frame = append(frame, a.Value)
			n.declared[a.Value]++
		}
	}
	n.frames = append(n.frames, frame)

	if !n.bound(el.Name.Space) {
		return el.Name.Space, false
	}
	for _, a := range el.Attr {
		if a.Name.Space != "xmlns" && !n.bound(a.Name.Space) {
			return a.Name.Space, false
		}
	}
	return "", true
}

func (n *namespaceScope) pop() {
	if len(n.frames) == 0 {
		return
	}
	last := n.frames[len(n.frames)-1]
	n.frames = n.frames[:len(n.frames)-1]
	for _, uri := range last {
		n.declared[uri]--
	}
}

func (n *namespaceScope) bound(space string) bool {
	return space == "" || space == xmlNamespace || n.declared[space] > 0
}

var (
	rootTagPattern = regexp.MustCompile(`^<svg\b[^>]*>`)
	xmlnsPattern   = regexp.MustCompile(`\bxmlns\s*=`)
	viewBoxPattern = regexp.MustCompile(`\bviewBox\s*=`)
)

// Repair applies one deterministic pass: add xmlns to the root tag if absent, add
// viewBox="0 0 width height" if absent, and append </svg> for every unclosed <svg.
// It does not validate.
func Repair(svg string, width, height int) string {
	s := strings.TrimSpace(svg)

	if tag := rootTagPattern.FindString(s); tag != "" {
		var attrs string
		if !xmlnsPattern.MatchString(tag) {
			attrs += fmt.Sprintf(` xmlns="%s"`, Namespace)
		}
		if !viewBoxPattern.MatchString(tag) {
			attrs += fmt.Sprintf(` viewBox="0 0 %d %d"`, width, height)
		}
		s = "<svg" + attrs + s[len("<svg"):]
	}

	if open, closed := strings.Count(s, "<svg"), strings.Count(s, "</svg>"); open > closed {
		s += strings.Repeat("</svg>", open-closed)
	}
	return s
}

// Outcome reports what Accept did.
type Outcome struct {
	SVG      string
	Repaired bool
}

// Accept validates svg, and on failure repairs it once and validates again. The
// returned error is the second validation failure.
func Accept(svg string, width, height int) (Outcome, error) {
	if err := Validate(svg); err == nil {
		return Outcome{SVG: strings.TrimSpace(svg)}, nil
	}
	repaired := Repair(svg, width, height)
	if err := Validate(repaired); err != nil {
		return Outcome{}, err
	}
	return Outcome{SVG: repaired, Repaired: true}, nil
}

// WrapContainer embeds an accepted SVG in a fixed-size HTML container.
func WrapContainer(svg string, width, height int) string {
	return fmt.Sprintf("<div class=\"infographic-container\" style=\"width: %dpx; height: %dpx; overflow: hidden;\">\n%s\n</div>", width, height, svg)
}

// WrapHTMLInSVG embeds an HTML fragment in an SVG foreignObject.
func WrapHTMLInSVG(html string, width, height int) string {
	return fmt.Sprintf(`<svg xmlns="%[1]s" viewBox="0 0 %[2]d %[3]d" width="%[2]d" height="%[3]d">
  <foreignObject x="0" y="0" width="%[2]d" height="%[3]d">
    <div xmlns="http://www.w3.org/1999/xhtml" style="width: 100%%; height: 100%%;">
%[4]s
    </div>
  </foreignObject>
</svg>`, Namespace, width, height, html)
}
