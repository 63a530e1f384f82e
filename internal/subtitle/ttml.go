package subtitle

import (
	"fmt"
	"github.com/beevik/etree"
	"strconv"
	"strings"
)

const (
	titleCueID    = "episode_title"
	titleCueBegin = "00:00:00.000"
	titleCueEnd   = "00:00:01.850"
)

// Rewrite describes one TTML transformation.
type Rewrite struct {
	Segments []string
	// KeepClosedCaptions and KeepMusicNotes disable the matching filters.
	KeepClosedCaptions bool
	KeepMusicNotes     bool
	// InjectTitle appends Title, possibly empty, as an extra cue to the first <div>.
	InjectTitle bool
	Title       string
}

// Apply parses a TTML document, rewrites every cue and serializes it again
// with an XML declaration and explicit end tags.
func (rw Rewrite) Apply(ttml []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(ttml); err != nil {
		return nil, fmt.Errorf("failed to parse ttml: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("ttml has no root element")
	}
	body := root.SelectElement("body")
	if body == nil {
		return nil, fmt.Errorf("ttml has no body")
	}

	divs := body.FindElements(".//div")
	for _, div := range divs {
		for _, p := range div.FindElements(".//p") {
			span := p.FindElement(".//span")
			if span == nil {
				continue
			}
			text := innerText(span)
			if n, ok := cueOrdinal(p.SelectAttrValue("xml:id", "")); ok && n < len(rw.Segments) {
				text = rw.Segments[n]
			}
			setText(span, rw.filter(text))
		}
	}

	if rw.InjectTitle && len(divs) > 0 {
		appendTitleCue(divs[0], rw.Title)
	}

	ensureDeclaration(doc)
	doc.WriteSettings.CanonicalEndTags = true
	return doc.WriteToBytes()
}

func (rw Rewrite) filter(text string) string {
	if !rw.KeepClosedCaptions {
		text = StripClosedCaptions(text)
	}
	if !rw.KeepMusicNotes {
		text = StripMusicNotes(text)
	}
	return text
}

// cueOrdinal parses N out of a cue id of the form "s<N>".
func cueOrdinal(id string) (int, bool) {
	digits, ok := strings.CutPrefix(id, "s")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// innerText concatenates all character data below e.
func innerText(e *etree.Element) string {
	var sb strings.Builder
	for _, tok := range e.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			sb.WriteString(t.Data)
		case *etree.Element:
			sb.WriteString(innerText(t))
		}
	}
	return sb.String()
}

// setText replaces all children of e with a single text node.
func setText(e *etree.Element, text string) {
	for len(e.Child) > 0 {
		e.RemoveChildAt(0)
	}
	e.SetText(text)
}

func appendTitleCue(div *etree.Element, title string) {
	p := div.CreateElement("p")
	p.CreateAttr("xml:id", titleCueID)
	p.CreateAttr("begin", titleCueBegin)
	p.CreateAttr("end", titleCueEnd)
	p.CreateAttr("region", "speaker")
	span := p.CreateElement("span")
	span.CreateAttr("style", "textStyle")
	span.SetText(title)
}

func ensureDeclaration(doc *etree.Document) {
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			return
		}
	}
	doc.InsertChildAt(0, etree.NewProcInst("xml", `version="1.0" encoding="UTF-8"`))
}
