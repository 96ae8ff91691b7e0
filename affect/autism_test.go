package affect

import (
	"context"
	"strings"
	"testing"

	"calmpage/engine"
	"calmpage/prose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const autismPage = `<html><head></head><body>
<main>
<p id="long">Calm pages help readers focus on what matters. The rest can wait for later.</p>
<p id="short">Too short.</p>
<p id="abs" style="position: absolute">Absolutely positioned paragraphs keep their own position value.</p>
<aside><p id="aside">This paragraph sits in an aside and is long enough to summarise.</p></aside>
</main>
<p id="outside">This paragraph is outside the main content and long enough too.</p>
</body></html>`

func TestAutismSummaries(t *testing.T) {
	t.Parallel()
	doc, _ := newDoc(t, autismPage)
	before := doc.String()
	m := NewAutism()
	c := enable(t, doc, m)
	root := doc.DocumentElement()

	for _, class := range []string{"autism-color-reduced", "autism-hide-extras", "autism-vertical-layout", "autism-paragraph-summaries-enabled"} {
		assert.True(t, engine.HasClass(root, class), class)
	}

	boxes := m.Summaries()
	require.Len(t, boxes, 2)
	long := doc.GetElementByID("long")
	assert.Same(t, long, boxes[0].Parent)
	assert.Same(t, boxes[0], long.FirstChild)
	assert.Equal(t, "note", engine.Attr(boxes[0], "role"))
	assert.Equal(t, "Calm pages help readers focus on what matters.", engine.TextContent(boxes[0]))
	assert.Equal(t, prose.Summarize("Calm pages help readers focus on what matters. The rest can wait for later."), engine.TextContent(boxes[0]))
	assert.Equal(t, "relative", engine.Style(long, "position"))
	assert.Equal(t, "absolute", engine.Style(doc.GetElementByID("abs"), "position"))

	for _, id := range []string{"short", "aside", "outside"} {
		assert.Nil(t, engine.Query(doc.GetElementByID(id), "."+SummaryBoxClass), id)
	}

	disable(t, c)
	assert.Equal(t, before, doc.String())
}

func TestAutismSummaryFlag(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	doc, _ := newDoc(t, autismPage)
	m := NewAutism()
	c := engine.NewController(doc, m)
	c.State().SetFlag(FlagHideExtras, false)
	require.NoError(t, c.Enable(ctx))
	root := doc.DocumentElement()
	assert.False(t, engine.HasClass(root, "autism-hide-extras"))
	require.Len(t, m.Summaries(), 2)

	require.NoError(t, c.SetFlag(ctx, FlagParagraphSummaries, false))
	assert.Empty(t, m.Summaries())
	assert.Empty(t, doc.QueryAll("."+SummaryBoxClass))
	assert.False(t, engine.HasAttr(doc.GetElementByID("long"), "style"))
	assert.False(t, engine.HasClass(root, "autism-paragraph-summaries-enabled"))

	require.NoError(t, c.SetFlag(ctx, FlagParagraphSummaries, true))
	assert.Len(t, m.Summaries(), 2)
	assert.True(t, engine.HasClass(root, "autism-paragraph-summaries-enabled"))

	require.NoError(t, c.SetFlag(ctx, FlagHideExtras, true))
	assert.True(t, engine.HasClass(root, "autism-hide-extras"))
}

func TestAutismSummarisesInsertedParagraphs(t *testing.T) {
	t.Parallel()
	doc, _ := newDoc(t, `<html><head></head><body><div id="feed"></div></body></html>`)
	m := NewAutism()
	enable(t, doc, m)
	require.Empty(t, m.Summaries())

	p := doc.CreateElement("p")
	p.AppendChild(doc.CreateText("Short one. Another short sentence follows it here."))
	doc.AppendChild(doc.GetElementByID("feed"), p)
	doc.Flush()

	require.Len(t, m.Summaries(), 1)
	assert.Equal(t, "Short one. Another short sentence follows it here.", engine.TextContent(m.Summaries()[0]))
}

func TestAutismSummaryStaysInsideParagraphWhenServed(t *testing.T) {
	t.Parallel()
	doc, _ := newDoc(t, autismPage)
	enable(t, doc, NewAutism())

	root, err := html.Parse(strings.NewReader(doc.String()))
	require.NoError(t, err)
	long := engine.Query(root, "#long")
	require.NotNil(t, long)
	box := engine.Query(root, "."+SummaryBoxClass)
	require.NotNil(t, box)
	assert.Same(t, long, box.Parent)
	assert.Equal(t, "span", box.Data)
	assert.Contains(t, engine.TextContent(long), "The rest can wait for later.")
}
