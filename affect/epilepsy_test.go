package affect

import (
	"testing"

	"calmpage/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epilepsyPage = `<html><head></head><body>
<p id="spin" style="animation: spin 1s infinite">spinning</p>
<div id="calm" style="transition: none">still</div>
<img id="gif" src="cat.gif" alt="cat">
<img id="jpg" src="dog.jpg">
<video id="vid" src="clip.mp4" autoplay></video>
</body></html>`

func TestEpilepsyEnableDisable(t *testing.T) {
	t.Parallel()
	doc, _ := newDoc(t, epilepsyPage)
	before := doc.String()
	m := NewEpilepsy()
	c := enable(t, doc, m)

	style := doc.GetElementByID("calm-epilepsy-style")
	require.NotNil(t, style)
	assert.Contains(t, engine.TextContent(style), "animation: none !important")

	gates := m.Gates().Gates()
	require.Len(t, gates, 2)
	assert.Equal(t, engine.TriggerHover, gates[0].Trigger)
	assert.Equal(t, engine.TriggerClick, gates[1].Trigger)
	assert.True(t, gates[1].IsVideo())
	assert.Nil(t, doc.GetElementByID("gif"), "the gif is swapped for its gate")
	assert.NotNil(t, doc.GetElementByID("jpg"))

	vid := doc.GetElementByID("vid")
	assert.False(t, engine.HasAttr(vid, "autoplay"))
	assert.True(t, engine.HasAttr(vid, "controls"))

	spin := doc.GetElementByID("spin")
	assert.Equal(t, "none", engine.Style(spin, "animation"))
	assert.Equal(t, "none", engine.Style(spin, "transition"))
	assert.Equal(t, "auto", engine.Style(spin, "scroll-behavior"))
	assert.Equal(t, "transition: none", engine.Attr(doc.GetElementByID("calm"), "style"))

	assert.Zero(t, c.Session().Loop.Sweep(doc.Body()), "a second sweep finds nothing new")

	disable(t, c)
	assert.Nil(t, m.Gates())
	assert.Equal(t, before, doc.String())
}

func TestEpilepsyGatesInsertedMedia(t *testing.T) {
	t.Parallel()
	doc, _ := newDoc(t, `<html><head></head><body><div id="feed"></div></body></html>`)
	m := NewEpilepsy()
	c := enable(t, doc, m)
	require.Empty(t, m.Gates().Gates())

	feed := doc.GetElementByID("feed")
	item := doc.CreateElement("div")
	item.AppendChild(doc.CreateElement("img", "src", "https://media.giphy.com/media/abc/giphy_s.gif"))
	item.AppendChild(doc.CreateElement("span", "style", "animation: blink 0.2s infinite"))
	doc.AppendChild(feed, item)
	doc.Flush()

	gates := m.Gates().Gates()
	require.Len(t, gates, 1)
	assert.Equal(t, "https://media.giphy.com/media/abc/giphy.gif", gates[0].RealURL)
	assert.Equal(t, "none", engine.Style(engine.Query(item, "span"), "animation"))

	doc.Dispatch(gates[0].Wrapper(), &engine.Event{Type: engine.EventMouseEnter})
	assert.Equal(t, engine.Active, gates[0].State())

	disable(t, c)
	img := engine.Query(feed, "img")
	require.NotNil(t, img)
	assert.Empty(t, doc.QueryAll("["+engine.GateAttr+"]"))
	assert.False(t, engine.HasAttr(engine.Query(item, "span"), "data-calm-epilepsy-orig-style-animation"))
}
