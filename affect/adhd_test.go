package affect

import (
	"testing"
	"time"

	"calmpage/engine"
	"calmpage/palette"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adhdPage = `<html><head></head><body style="background-color: #101010">
<nav>menu</nav>
<h1>Title</h1>
<p id="p1">First paragraph.</p>
<h2>Section</h2>
<p id="p2">Second <a id="link" href="/x" style="color: #1565c0">link</a>.</p>
<p id="p3">Third.</p>
<img src="loop.gif">
</body></html>`

func TestADHDSummaryAndLinks(t *testing.T) {
	t.Parallel()
	doc, _ := newDoc(t, adhdPage)
	before := doc.String()
	m := NewADHD()
	c := enable(t, doc, m)

	summary := doc.GetElementByID(SummaryID)
	require.NotNil(t, summary)
	assert.Same(t, summary, firstElementChild(doc.Body()))
	assert.True(t, engine.IsOwned(summary))
	assert.Equal(t, "Title\nSection", m.SummaryText())
	cells := engine.QueryAll(summary, "td")
	require.Len(t, cells, 2)
	assert.Equal(t, "0px", engine.Style(cells[0], "padding-left"))
	assert.Equal(t, "16px", engine.Style(cells[1], "padding-left"))

	want := palette.LinkColorFor(palette.RGB{R: 0x10, G: 0x10, B: 0x10}, palette.RGB{R: 0x15, G: 0x65, B: 0xC0})
	assert.Equal(t, want.Hex(), engine.Style(doc.GetElementByID("link"), "color"))

	require.Len(t, m.Gates().Gates(), 1)

	doc.AppendChild(doc.Body(), doc.CreateElement("h3"))
	late := doc.CreateElement("h3")
	late.AppendChild(doc.CreateText("Later"))
	doc.AppendChild(doc.Body(), late)
	doc.Flush()
	assert.Equal(t, "Title\nSection\nLater", m.SummaryText())

	disable(t, c)
	doc.RemoveNode(late)
	doc.RemoveNode(doc.Body().LastChild)
	assert.Nil(t, doc.GetElementByID(SummaryID))
	assert.Equal(t, before, doc.String())
}

func TestADHDParagraphFocusKeys(t *testing.T) {
	t.Parallel()
	doc, _ := newDoc(t, adhdPage)
	m := NewADHD()
	enable(t, doc, m)
	p1, p2, p3 := doc.GetElementByID("p1"), doc.GetElementByID("p2"), doc.GetElementByID("p3")

	require.Same(t, p1, m.Focused())
	assert.True(t, engine.HasClass(p1, FocusClass))

	key := func(k string) bool { return doc.Dispatch(p1, &engine.Event{Type: engine.EventKeyDown, Key: k}) }
	assert.False(t, key("ArrowDown"), "handled keys are prevented")
	assert.Same(t, p2, m.Focused())
	assert.False(t, engine.HasClass(p1, FocusClass))
	assert.True(t, engine.HasClass(p2, FocusClass))

	key("PageDown")
	key("PageDown")
	assert.Same(t, p3, m.Focused(), "focus stops at the last paragraph")

	key("ArrowUp")
	assert.Same(t, p2, m.Focused())
	assert.True(t, key("a"), "other keys pass through")
	assert.Same(t, p2, m.Focused())
}

func TestADHDWheelIsThrottled(t *testing.T) {
	t.Parallel()
	doc, _ := newDoc(t, adhdPage)
	m := NewADHD()
	enable(t, doc, m)
	p1, p2 := doc.GetElementByID("p1"), doc.GetElementByID("p2")
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	wheel := func(dy float64, at time.Duration) {
		doc.Dispatch(doc.Body(), &engine.Event{Type: engine.EventWheel, DeltaY: dy, Time: t0.Add(at)})
	}
	wheel(120, 0)
	assert.Same(t, p2, m.Focused())
	wheel(120, 100*time.Millisecond)
	assert.Same(t, p2, m.Focused(), "inside the throttle window")
	wheel(-120, 400*time.Millisecond)
	assert.Same(t, p1, m.Focused())
}

func TestADHDWithoutHeadingsOrParagraphs(t *testing.T) {
	t.Parallel()
	doc, _ := newDoc(t, `<html><head></head><body><div>plain</div></body></html>`)
	m := NewADHD()
	c := enable(t, doc, m)
	assert.Nil(t, doc.GetElementByID(SummaryID))
	assert.Nil(t, m.Focused())
	assert.False(t, doc.Dispatch(doc.Body(), &engine.Event{Type: engine.EventKeyDown, Key: "ArrowDown"}))
	disable(t, c)
}
