package engine

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

type outlineModule struct {
	enableErr error
	prefs     map[string]any
	keys      int
	flags     []string
	disabled  int
}

func (m *outlineModule) Name() string { return "outline" }

func (m *outlineModule) Style() StyleSpec {
	return StyleSpec{ID: "calm-outline-style", Path: "outline.css", Fallback: "p { outline: 1px solid red }"}
}

func (m *outlineModule) PreferenceKeys() []string { return []string{"fontSize"} }

func (m *outlineModule) Enable(s *Session) error {
	m.prefs = s.Prefs
	s.SetRootClass("calm-outline", true)
	s.Detect(func(n *html.Node) bool {
		if !IsElement(n, "p") || s.Ledger.IsDone(n) {
			return false
		}
		s.Ledger.MarkDone(n)
		s.Ledger.SetStyle(n, "outline", "1px solid red")
		return true
	})
	s.Inject(s.Doc.Body(), s.Doc.CreateElement("button", "id", "calm-outline-btn"), nil)
	s.Listen(s.Doc.Body(), EventKeyDown, func(*Event) { m.keys++ })
	return m.enableErr
}

func (m *outlineModule) Disable(*Session) { m.disabled++ }

func (m *outlineModule) FlagChanged(s *Session, name string, on bool) {
	m.flags = append(m.flags, name)
	s.SetRootClass("calm-outline-"+name, on)
}

const outlinePage = `<html><head><title>t</title></head><body><p>one</p><p>two</p></body></html>`

func TestControllerEnableDisableRestoresDocument(t *testing.T) {
	t.Parallel()
	doc := parseDoc(t, outlinePage)
	original := doc.String()
	m := &outlineModule{}
	c := NewController(doc, m)
	ctx := context.Background()

	require.NoError(t, c.Enable(ctx))
	require.NoError(t, c.Enable(ctx))
	assert.True(t, c.Enabled())
	assert.Len(t, doc.QueryAll("#calm-outline-style"), 1)
	assert.Equal(t, "p { outline: 1px solid red }", TextContent(doc.GetElementByID("calm-outline-style")))
	assert.True(t, HasClass(doc.DocumentElement(), "calm-outline"))
	assert.NotNil(t, doc.GetElementByID("calm-outline-btn"))
	for _, p := range doc.QueryAll("p") {
		assert.Equal(t, "1px solid red", Style(p, "outline"))
	}

	late := doc.CreateElement("p")
	doc.AppendChild(doc.Body(), late)
	doc.Flush()
	assert.Equal(t, "1px solid red", Style(late, "outline"))

	doc.Dispatch(doc.Body(), &Event{Type: EventKeyDown, Key: "j"})
	assert.Equal(t, 1, m.keys)

	require.NoError(t, c.Disable(ctx))
	require.NoError(t, c.Disable(ctx))
	assert.False(t, c.Enabled())
	assert.Equal(t, 1, m.disabled)
	assert.Equal(t, 0, doc.ListenerCount(doc.Body()))
	assert.False(t, HasAttr(late, "style"))
	assertNoMarkers(t, doc)

	doc.RemoveNode(late)
	assert.Equal(t, original, doc.String())
}

func TestControllerLoadsStylesheetAsset(t *testing.T) {
	t.Parallel()
	doc := parseDoc(t, outlinePage)
	assets := FSAssets{FS: fstest.MapFS{"outline.css": {Data: []byte("p { color: blue }")}}}
	c := NewController(doc, &outlineModule{}, WithAssets(assets))
	require.NoError(t, c.Enable(context.Background()))

	settle(t, doc)
	assert.Equal(t, "p { color: blue }", TextContent(doc.GetElementByID("calm-outline-style")))
}

func TestControllerFallsBackToInlineStylesheet(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	doc, err := ParseString(outlinePage, WithLogger(log.New(&logs, "", 0)))
	require.NoError(t, err)
	c := NewController(doc, &outlineModule{}, WithAssets(FSAssets{FS: fstest.MapFS{}}))
	require.NoError(t, c.Enable(context.Background()))

	settle(t, doc)
	assert.Equal(t, "p { outline: 1px solid red }", TextContent(doc.GetElementByID("calm-outline-style")))
	assert.Contains(t, logs.String(), "ASSET: outline.css unavailable")
}

func TestControllerIgnoresLateAssetAfterDisable(t *testing.T) {
	t.Parallel()
	doc := parseDoc(t, outlinePage)
	original := doc.String()
	release := make(chan struct{})
	slow := AssetFunc(func(context.Context, string) ([]byte, error) {
		<-release
		return []byte("p { color: blue }"), nil
	})
	c := NewController(doc, &outlineModule{}, WithAssets(slow))
	ctx := context.Background()
	require.NoError(t, c.Enable(ctx))
	require.NoError(t, c.Disable(ctx))
	close(release)

	settle(t, doc)
	assert.Equal(t, original, doc.String())
}

func TestControllerSurvivesPreferenceFailures(t *testing.T) {
	t.Parallel()
	stores := map[string]PreferenceStore{
		"nil": nil,
		"error": PrefsFunc(func(context.Context, ...string) (map[string]any, error) {
			return nil, errors.New("storage offline")
		}),
		"panic": PrefsFunc(func(context.Context, ...string) (map[string]any, error) {
			panic("storage exploded")
		}),
	}
	for name, store := range stores {
		store := store
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			doc := parseDoc(t, outlinePage)
			m := &outlineModule{}
			c := NewController(doc, m, WithPreferences(store))
			require.NoError(t, c.Enable(context.Background()))
			assert.True(t, c.Enabled())
			assert.Empty(t, m.prefs)
		})
	}
}

func TestControllerPassesPreferences(t *testing.T) {
	t.Parallel()
	doc := parseDoc(t, outlinePage)
	m := &outlineModule{}
	c := NewController(doc, m, WithPreferences(MapPrefs{"fontSize": 18, "other": true}))
	require.NoError(t, c.Enable(context.Background()))
	assert.Equal(t, map[string]any{"fontSize": 18}, m.prefs)
}

func TestControllerRollsBackFailedEnable(t *testing.T) {
	t.Parallel()
	doc := parseDoc(t, outlinePage)
	original := doc.String()
	boom := errors.New("boom")
	m := &outlineModule{enableErr: boom}
	c := NewController(doc, m)

	err := c.Enable(context.Background())
	require.ErrorIs(t, err, boom)
	assert.False(t, c.Enabled())
	assert.Equal(t, 1, m.disabled)
	assert.Equal(t, original, doc.String())
}

func TestControllerFlagsAndToggle(t *testing.T) {
	t.Parallel()
	doc := parseDoc(t, outlinePage)
	m := &outlineModule{}
	state := NewState()
	c := NewController(doc, m, WithState(state))
	ctx := context.Background()

	require.NoError(t, c.SetFlag(ctx, "big", true))
	assert.Empty(t, m.flags, "flags recorded while disabled do not reach the module")
	assert.True(t, c.Flag("big"))

	require.NoError(t, c.Toggle(ctx))
	assert.True(t, state.Enabled())
	require.NoError(t, c.SubToggle(ctx, "dim"))
	assert.Equal(t, []string{"dim"}, m.flags)
	assert.True(t, HasClass(doc.DocumentElement(), "calm-outline-dim"))
	assert.Equal(t, []string{"big", "dim"}, state.Flags())

	require.NoError(t, c.Toggle(ctx))
	assert.False(t, state.Enabled())
	assert.False(t, HasAttr(doc.DocumentElement(), "class"))
}
