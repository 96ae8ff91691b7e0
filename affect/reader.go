package affect

import (
	"bytes"
	"errors"
	"regexp"
	"strings"

	"calmpage/engine"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const ReaderContainerID = "reader-container"

// ErrNoArticle is returned when a page has no readable text.
var ErrNoArticle = errors.New("no readable content")

// contentSelectors are tried in order; the first match is the article.
var contentSelectors = []string{
	"#mw-content-text",
	"#content",
	"#main",
	"article",
	"[role='main']",
	".content",
	".main",
}

const readerRemovals = "img, table, figure, nav, footer, aside, header, form, script, style, noscript, iframe"

var bracketRef = regexp.MustCompile(`\[[^\]]*?\]`)

const readerCSS = `#reader-container {
  max-width: 720px; margin: 40px auto; padding: 0 20px;
  font-family: Georgia, "Times New Roman", serif; font-size: 20px; line-height: 1.7; color: #222;
}
#reader-container h1, #reader-container h2, #reader-container h3 { font-family: sans-serif; line-height: 1.3; }
body { background: #fdfdfb !important; }
`

var readerPolicy = newReaderPolicy()

func newReaderPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("lang", "dir").Globally()
	return p
}

var markdown = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

// Reader replaces the page with a cleaned copy of its main content.
type Reader struct {
	original  []*html.Node
	container *html.Node
}

func NewReader() *Reader { return &Reader{} }

func (m *Reader) Name() string { return NameReader }

func (m *Reader) Style() engine.StyleSpec { return styleSpec(NameReader, readerCSS) }

// Container is the reader container while the mode is on.
func (m *Reader) Container() *html.Node { return m.container }

func (m *Reader) Enable(s *engine.Session) error {
	m.original, m.container = nil, nil
	body := s.Doc.Body()
	if body == nil {
		return nil
	}
	content, err := Extract(s.Doc)
	if err != nil {
		s.Logger().Printf("MODE: %s left the page alone: %v", NameReader, err)
		return nil
	}
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		m.original = append(m.original, c)
	}
	for _, c := range m.original {
		s.Doc.RemoveNode(c)
	}
	m.container = content
	s.Inject(body, content, nil)
	s.OnDisable(func() {
		for _, c := range m.original {
			s.Doc.AppendChild(body, c)
		}
		m.original, m.container = nil, nil
	})
	return nil
}

func (m *Reader) Disable(*engine.Session) {}

// Extract builds a detached #reader-container holding the cleaned main
// content of doc. The document is not modified.
func Extract(doc *engine.Document) (*html.Node, error) {
	src := mainContent(doc)
	if src == nil {
		return nil, ErrNoArticle
	}
	clone := engine.CloneNode(src)
	cleanArticle(clone)

	var buf bytes.Buffer
	for c := clone.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return nil, err
		}
	}
	container := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
		Attr:     []html.Attribute{{Key: "id", Val: ReaderContainerID}},
	}
	nodes, err := html.ParseFragment(strings.NewReader(readerPolicy.Sanitize(buf.String())), container)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	if engine.VisibleText(container) == "" {
		return nil, ErrNoArticle
	}
	return container, nil
}

func mainContent(doc *engine.Document) *html.Node {
	for _, sel := range contentSelectors {
		if n := doc.Query(sel); n != nil {
			return n
		}
	}
	return doc.Body()
}

// cleanArticle strips media, chrome, links and reference markers from a
// detached tree.
func cleanArticle(root *html.Node) {
	for _, n := range engine.QueryAll(root, readerRemovals) {
		if n != root && n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	for _, a := range engine.QueryAll(root, "a") {
		if a.Parent == nil {
			continue
		}
		a.Parent.InsertBefore(&html.Node{Type: html.TextNode, Data: engine.TextContent(a)}, a)
		a.Parent.RemoveChild(a)
	}
	for _, t := range engine.TextNodes(root) {
		t.Data = bracketRef.ReplaceAllString(t.Data, "")
	}
	els := engine.QueryAll(root, "div, span")
	for i := len(els) - 1; i >= 0; i-- {
		el := els[i]
		if el != root && el.Parent != nil && strings.TrimSpace(engine.TextContent(el)) == "" {
			el.Parent.RemoveChild(el)
		}
	}
}

// article returns the live reader container or a freshly extracted one.
func article(doc *engine.Document) (*html.Node, error) {
	if c := doc.GetElementByID(ReaderContainerID); c != nil {
		return c, nil
	}
	return Extract(doc)
}

// ArticleText is the plain text of the page's article, for summarisers.
func ArticleText(doc *engine.Document) (string, error) {
	c, err := article(doc)
	if err != nil {
		return "", err
	}
	return engine.VisibleText(c), nil
}

// ArticleMarkdown renders the page's article as Markdown.
func ArticleMarkdown(doc *engine.Document) (string, error) {
	c, err := article(doc)
	if err != nil {
		return "", err
	}
	var opts []converter.ConvertOptionFunc
	if doc.BaseURL() != "" {
		opts = append(opts, converter.WithDomain(doc.BaseURL()))
	}
	out, err := markdown.ConvertString(engine.OuterHTML(c), opts...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
