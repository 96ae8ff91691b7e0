package affect

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"calmpage/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDoc(t *testing.T, src string, opts ...engine.Option) (*engine.Document, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	opts = append([]engine.Option{engine.WithLogger(log.New(&logs, "", 0))}, opts...)
	doc, err := engine.ParseString(src, opts...)
	require.NoError(t, err)
	return doc, &logs
}

func enable(t *testing.T, doc *engine.Document, m engine.Module, opts ...engine.ControllerOption) *engine.Controller {
	t.Helper()
	c := engine.NewController(doc, m, opts...)
	require.NoError(t, c.Enable(context.Background()))
	return c
}

func disable(t *testing.T, c *engine.Controller) {
	t.Helper()
	require.NoError(t, c.Disable(context.Background()))
}

func TestNewBuildsEveryModule(t *testing.T) {
	t.Parallel()
	for _, name := range Names() {
		m, err := New(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, m.Name())
	}
	for alias, want := range map[string]string{
		"reader_mode":     NameReader,
		"Color-Blindness": NameColorblind,
		" ADHD ":          NameADHD,
	} {
		m, err := New(alias)
		require.NoError(t, err, alias)
		assert.Equal(t, want, m.Name())
	}

	_, err := New("partial-vision")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrUnknownMode))
	assert.Contains(t, err.Error(), "partial-vision")
}

func TestStyledModulesUseWellKnownIDs(t *testing.T) {
	t.Parallel()
	for _, name := range Names() {
		m, err := New(name)
		require.NoError(t, err)
		sp, ok := m.(engine.StyleProvider)
		if !ok {
			continue
		}
		spec := sp.Style()
		assert.Equal(t, "calm-"+name+"-style", spec.ID)
		assert.Equal(t, "css/"+name+".css", spec.Path)
		assert.NotEmpty(t, spec.Fallback, name)
	}
}

func TestBaseInjectsOnlyItsStylesheet(t *testing.T) {
	t.Parallel()
	const page = `<html><head></head><body><p>x</p></body></html>`
	doc, _ := newDoc(t, page)
	before := doc.String()

	c := enable(t, doc, NewBase())
	style := doc.GetElementByID("calm-base-style")
	require.NotNil(t, style)
	assert.Equal(t, baseCSS, engine.TextContent(style))
	assert.Equal(t, 0, c.Session().Loop.Applied())

	disable(t, c)
	assert.Equal(t, before, doc.String())
}
