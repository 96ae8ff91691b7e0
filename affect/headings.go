package affect

import (
	"unicode/utf8"

	"calmpage/engine"
	"calmpage/prose"
	"golang.org/x/net/html"
)

// headingCandidate is a heading whose text shouts.
type headingCandidate struct {
	node        *html.Node
	text        string
	replacement string
	acronyms    prose.Acronyms
}

func newHeadingCandidate(n *html.Node, acronyms prose.Acronyms) (headingCandidate, bool) {
	if headingLevel(n) == 0 {
		return headingCandidate{}, false
	}
	text := engine.TextContent(n)
	if !prose.IsMostlyAllCaps(text) {
		return headingCandidate{}, false
	}
	c := headingCandidate{node: n, text: text, acronyms: acronyms}
	c.replacement = acronyms.SentenceCase(text)
	return c, c.replacement != text
}

// pieces splits the replacement along the rune lengths of the heading's
// text nodes so inline markup stays put. It returns the whole replacement
// when the lengths no longer line up.
func (c headingCandidate) pieces() []string {
	nodes := engine.TextNodes(c.node)
	if utf8.RuneCountInString(c.replacement) != utf8.RuneCountInString(c.text) || len(nodes) == 0 {
		return []string{c.replacement}
	}
	runes := []rune(c.replacement)
	out := make([]string, 0, len(nodes))
	at := 0
	for _, t := range nodes {
		n := utf8.RuneCountInString(t.Data)
		out = append(out, string(runes[at:at+n]))
		at += n
	}
	return out
}

func (m *Dyslexia) heading(s *engine.Session, n *html.Node) bool {
	if skipContent(n) || s.Ledger.IsDone(n) {
		return false
	}
	c, ok := newHeadingCandidate(n, m.acronyms)
	if !ok {
		return false
	}
	s.Ledger.MarkDone(n)
	if s.Doc.OverlapsMedia(n) {
		caption := s.Doc.CreateElement("div", "class", CaptionClass, engine.OwnedAttr, "1", "role", "note")
		caption.AppendChild(s.Doc.CreateText(c.replacement))
		s.Doc.InsertAfter(n, caption)
		s.Track(caption)
		m.captions = append(m.captions, caption)
		return true
	}
	s.Ledger.SetTexts(n, c.pieces())
	return true
}
