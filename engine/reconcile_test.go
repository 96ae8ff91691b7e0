package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func markParagraphs(doc *Document, l *Ledger, calls map[*html.Node]int) Detector {
	return func(n *html.Node) bool {
		if !IsElement(n, "p") {
			return false
		}
		calls[n]++
		if l.IsDone(n) {
			return false
		}
		l.MarkDone(n)
		l.SetStyle(n, "outline", "1px dashed")
		return true
	}
}

func TestLoopSweepsInitialAndInsertedContent(t *testing.T) {
	t.Parallel()
	doc := parseDoc(t, `<html><body><p>one</p><section><p>two</p></section></body></html>`)
	l := NewLedger(doc, "t")
	calls := map[*html.Node]int{}
	loop := NewLoop(doc, "t")

	require.Equal(t, 2, loop.Start(doc.Body(), markParagraphs(doc, l, calls)))
	assert.True(t, loop.Running())

	div := doc.CreateElement("div")
	p3 := doc.CreateElement("p")
	div.AppendChild(p3)
	doc.AppendChild(doc.Body(), div)
	p4 := doc.CreateElement("p")
	doc.AppendChild(div, p4)
	doc.Flush()

	assert.True(t, l.IsDone(p3))
	assert.True(t, l.IsDone(p4))
	assert.Equal(t, 1, calls[p3])
	assert.Equal(t, 1, calls[p4], "a node inside an already swept subtree is not swept again")
	assert.Equal(t, 4, loop.Applied())

	mutations := doc.Mutations()
	assert.Equal(t, 0, loop.Sweep(doc.Body()))
	assert.Equal(t, mutations, doc.Mutations())

	loop.Stop()
	assert.False(t, loop.Running())
	late := doc.CreateElement("p")
	doc.AppendChild(doc.Body(), late)
	doc.Flush()
	assert.False(t, l.IsDone(late))
}

func TestLoopConvergesOnOwnInsertions(t *testing.T) {
	t.Parallel()
	doc := parseDoc(t, `<html><body><h1>Title</h1><h2>Sub</h2></body></html>`)
	l := NewLedger(doc, "t")
	captions := 0
	caption := func(n *html.Node) bool {
		if !IsElement(n, "h1", "h2") || l.IsDone(n) {
			return false
		}
		l.MarkDone(n)
		c := doc.CreateElement("div", "class", "caption")
		c.AppendChild(doc.CreateText(TextContent(n)))
		doc.InsertAfter(n, c)
		captions++
		return true
	}
	loop := NewLoop(doc, "t")
	assert.Equal(t, 2, loop.Start(doc.Body(), caption))
	rounds := doc.Flush()
	assert.Less(t, rounds, MaxDeliveryRounds)
	assert.Equal(t, 2, captions)
	assert.Len(t, doc.QueryAll("div.caption"), 2)
}

func TestLoopSkipsNodesDetachedByEarlierDetector(t *testing.T) {
	t.Parallel()
	doc := parseDoc(t, `<html><body><aside>ad</aside><p>x</p></body></html>`)
	remove := func(n *html.Node) bool {
		if !IsElement(n, "aside") {
			return false
		}
		doc.RemoveNode(n)
		return true
	}
	var seen []string
	record := func(n *html.Node) bool {
		seen = append(seen, n.Data)
		return false
	}
	loop := NewLoop(doc, "t")
	assert.Equal(t, 1, loop.Start(doc.Body(), remove, record))
	assert.Equal(t, []string{"body", "p"}, seen)
}
