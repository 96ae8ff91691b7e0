package affect

import (
	"context"
	"testing"

	"calmpage/engine"
	"calmpage/prose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dyslexiaPage = `<html><head></head><body>
<header>Site header</header>
<h1 id="h">BREAKING NEWS FROM NASA</h1>
<h2 id="mixed">HELLO <em>NASA</em> WORLD</h2>
<h3 id="calm">Already calm</h3>
<div id="cols" class="col-6" style="color: red">text</div>
<p id="p" style="font-size: 9px">para</p>
</body></html>`

func TestDyslexiaEnableDisable(t *testing.T) {
	t.Parallel()
	doc, _ := newDoc(t, dyslexiaPage)
	before := doc.String()
	prefs := engine.MapPrefs{PrefBackground: "#FFEEDD", PrefFontSize: 20}
	c := enable(t, doc, NewDyslexia(), engine.WithPreferences(prefs))
	root, body := doc.DocumentElement(), doc.Body()
	get := doc.GetElementByID

	assert.True(t, engine.HasClass(root, "dyslexia-mode"))
	assert.Equal(t, "#ffeedd", engine.Style(root, "--dyslexia-bg"))
	assert.Equal(t, "20px", engine.Style(root, "--dyslexia-font-size"))
	assert.Equal(t, "auto", engine.Style(root, "overflow"))
	assert.Equal(t, "auto", engine.Style(body, "overflow"))
	assert.NotNil(t, get("calm-dyslexia-motion"))
	assert.NotNil(t, get("calm-dyslexia-style"))

	assert.Equal(t, "none", engine.Style(engine.Query(body, "header"), "display"))
	assert.Equal(t, "Breaking news from NASA", engine.TextContent(get("h")))
	assert.Equal(t, "Hello NASA world", engine.TextContent(get("mixed")))
	assert.Equal(t, "NASA", engine.TextContent(engine.Query(get("mixed"), "em")), "inline markup survives")
	assert.Equal(t, "Already calm", engine.TextContent(get("calm")))

	cols := get("cols")
	assert.Empty(t, engine.Style(cols, "color"))
	assert.Equal(t, "600px", engine.Style(cols, "min-width"))
	assert.Equal(t, "100%", engine.Style(cols, "width"))
	assert.False(t, engine.HasAttr(get("p"), "style"))

	disable(t, c)
	assert.Equal(t, before, doc.String())
}

func TestDyslexiaLegacyPreferenceKeys(t *testing.T) {
	t.Parallel()
	doc, _ := newDoc(t, dyslexiaPage)
	prefs := engine.MapPrefs{legacyPrefBackground: "lavender", legacyPrefFontSize: "22"}
	enable(t, doc, NewDyslexia(), engine.WithPreferences(prefs))
	root := doc.DocumentElement()
	assert.Equal(t, "lavender", engine.Style(root, "--dyslexia-bg"))
	assert.Equal(t, "22px", engine.Style(root, "--dyslexia-font-size"))
}

func TestDyslexiaStripFlag(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	doc, _ := newDoc(t, dyslexiaPage)
	c := enable(t, doc, NewDyslexia())
	p := doc.GetElementByID("p")
	require.False(t, engine.HasAttr(p, "style"))

	require.NoError(t, c.SetFlag(ctx, FlagStripInlineStyles, false))
	assert.Equal(t, "font-size: 9px", engine.Attr(p, "style"))
	assert.Equal(t, "red", engine.Style(doc.GetElementByID("cols"), "color"))
	assert.Equal(t, "600px", engine.Style(doc.GetElementByID("cols"), "min-width"))
	assert.Equal(t, "none", engine.Style(engine.Query(doc.Body(), "header"), "display"))
	assert.Equal(t, "Breaking news from NASA", engine.TextContent(doc.GetElementByID("h")))

	require.NoError(t, c.SetFlag(ctx, FlagStripInlineStyles, true))
	assert.False(t, engine.HasAttr(p, "style"))
}

func TestDyslexiaCaptionsHeadingsOverMedia(t *testing.T) {
	t.Parallel()
	doc, _ := newDoc(t, `<html><head></head><body><img id="hero" src="hero.jpg"><h2 id="over">WELCOME TO THE SHOW</h2><h2 id="free">LOUD BUT FREE</h2></body></html>`)
	before := doc.String()
	box := engine.NewBoxLayout(engine.Rect{W: 1000, H: 1000})
	box.Place(doc.GetElementByID("hero"), engine.Rect{W: 800, H: 400})
	box.Place(doc.GetElementByID("over"), engine.Rect{X: 10, Y: 10, W: 400, H: 50})
	box.Place(doc.GetElementByID("free"), engine.Rect{X: 0, Y: 500, W: 400, H: 50})
	doc.SetLayout(box)

	m := NewDyslexia()
	c := enable(t, doc, m)
	over := doc.GetElementByID("over")
	assert.Equal(t, "WELCOME TO THE SHOW", engine.TextContent(over), "text over media is left in place")
	require.Len(t, m.Captions(), 1)
	caption := m.Captions()[0]
	assert.Same(t, caption, over.NextSibling)
	assert.True(t, engine.HasClass(caption, CaptionClass))
	assert.Equal(t, "Welcome to the show", engine.TextContent(caption))
	assert.Equal(t, "Loud but free", engine.TextContent(doc.GetElementByID("free")))

	disable(t, c)
	assert.Equal(t, before, doc.String())
}

func TestHeadingCandidatePieces(t *testing.T) {
	t.Parallel()
	doc, _ := newDoc(t, `<html><body><h1 id="a">WHY THE <b>UN</b> MATTERS</h1><h1 id="b">Mixed Case Title</h1><p id="c">SHOUTING</p></body></html>`)

	c, ok := newHeadingCandidate(doc.GetElementByID("a"), prose.DefaultAcronyms)
	require.True(t, ok)
	assert.Equal(t, "Why the UN matters", c.replacement)
	assert.Equal(t, []string{"Why the ", "UN", " matters"}, c.pieces())

	_, ok = newHeadingCandidate(doc.GetElementByID("b"), prose.DefaultAcronyms)
	assert.False(t, ok)
	_, ok = newHeadingCandidate(doc.GetElementByID("c"), prose.DefaultAcronyms)
	assert.False(t, ok, "only headings qualify")
}

func TestAcronymsFromPrefs(t *testing.T) {
	t.Parallel()
	acr := acronymsFromPrefs(map[string]any{PrefAcronyms: "ACME, xyz"})
	assert.True(t, acr.Has("ACME"))
	assert.True(t, acr.Has("XYZ"))
	assert.True(t, acr.Has("NASA"))
	assert.False(t, prose.DefaultAcronyms.Has("ACME"), "defaults are not modified")

	acr = acronymsFromPrefs(map[string]any{PrefAcronyms: []any{"IBM", 3}})
	assert.True(t, acr.Has("IBM"))
	assert.Equal(t, "Meet ACME at the IBM lab", acr.SentenceCase("MEET ACME AT THE IBM LAB"))
}
