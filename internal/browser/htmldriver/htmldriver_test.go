package htmldriver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"easyapply-engine/internal/browser"
)

const formDoc = `<html><body>
<div class="modal">
  <label for="phone">Phone</label>
  <input id="phone" type="text" required value="">
  <textarea id="bio" required>old</textarea>
  <select id="visa" required>
    <option value="">Select an option</option>
    <option value="y">Yes</option>
    <option value="n">No</option>
  </select>
  <fieldset>
    <legend>Relocate?</legend>
    <input type="radio" id="r1" name="reloc" value="Yes" required><label for="r1">Yes</label>
    <input type="radio" id="r2" name="reloc" value="No" required><label for="r2">No</label>
  </fieldset>
  <div style="display: none"><button id="ghost">Ghost</button></div>
  <button id="next" data-goto="step2">Next</button>
</div>
</body></html>`

func TestDriverReadsAndWrites(t *testing.T) {
	ctx := context.Background()
	d, err := FromHTML(formDoc)
	require.NoError(t, err)

	phone, err := d.FindOne(ctx, nil, browser.CSS("#phone"))
	require.NoError(t, err)
	require.NoError(t, d.Type(ctx, phone, "555"))
	require.NoError(t, d.Type(ctx, phone, "1234"))
	v, _ := d.Attribute(ctx, phone, "value")
	assert.Equal(t, "5551234", v)
	require.NoError(t, d.Clear(ctx, phone))
	v, _ = d.Attribute(ctx, phone, "value")
	assert.Equal(t, "", v)

	bio, _ := d.FindOne(ctx, nil, browser.CSS("#bio"))
	v, _ = d.Attribute(ctx, bio, "value")
	assert.Equal(t, "old", v)
	require.NoError(t, d.Clear(ctx, bio))
	require.NoError(t, d.Type(ctx, bio, "new text"))
	v, _ = d.Attribute(ctx, bio, "value")
	assert.Equal(t, "new text", v)

	visa, _ := d.FindOne(ctx, nil, browser.CSS("#visa"))
	idx, _ := d.Attribute(ctx, visa, "selectedIndex")
	assert.Equal(t, "0", idx)
	require.NoError(t, d.Select(ctx, visa, "no"))
	idx, _ = d.Attribute(ctx, visa, "selectedIndex")
	assert.Equal(t, "2", idx)
	assert.ErrorIs(t, d.Select(ctx, visa, "Maybe"), browser.ErrNotFound)

	tag, _ := d.Attribute(ctx, visa, "tagName")
	assert.Equal(t, "select", tag)
}

func TestDriverRadioViaLabel(t *testing.T) {
	ctx := context.Background()
	d, err := FromHTML(formDoc)
	require.NoError(t, err)

	labels, err := d.FindAll(ctx, nil, browser.CSS("label[for=r2]"))
	require.NoError(t, err)
	require.Len(t, labels, 1)
	require.NoError(t, d.Click(ctx, labels[0]))

	r1, _ := d.FindOne(ctx, nil, browser.CSS("#r1"))
	r2, _ := d.FindOne(ctx, nil, browser.CSS("#r2"))
	c1, _ := d.Attribute(ctx, r1, "checked")
	c2, _ := d.Attribute(ctx, r2, "checked")
	assert.Equal(t, "", c1)
	assert.Equal(t, "true", c2)

	require.NoError(t, d.Click(ctx, r1))
	c1, _ = d.Attribute(ctx, r1, "checked")
	c2, _ = d.Attribute(ctx, r2, "checked")
	assert.Equal(t, "true", c1)
	assert.Equal(t, "", c2)
}

func TestDriverStructuralSelectors(t *testing.T) {
	ctx := context.Background()
	d, err := FromHTML(formDoc)
	require.NoError(t, err)

	r1, _ := d.FindOne(ctx, nil, browser.CSS("#r1"))
	fs, err := d.FindOne(ctx, r1, browser.Closest("fieldset"))
	require.NoError(t, err)
	legend, err := d.FindOne(ctx, fs, browser.CSS("legend"))
	require.NoError(t, err)
	txt, _ := d.Text(ctx, legend)
	assert.Equal(t, "Relocate?", txt)

	phone, _ := d.FindOne(ctx, nil, browser.CSS("#phone"))
	prev, err := d.FindOne(ctx, phone, browser.PrevSibling())
	require.NoError(t, err)
	txt, _ = d.Text(ctx, prev)
	assert.Equal(t, "Phone", txt)

	_, err = d.FindOne(ctx, nil, browser.Parent())
	assert.Error(t, err)
}

func TestDriverVisibilityAndGoto(t *testing.T) {
	ctx := context.Background()
	d := New(map[string]string{
		"https://example.test/form": formDoc,
		"step2":                     `<html><body><p id="done">Step two</p></body></html>`,
	})
	require.NoError(t, d.Navigate(ctx, "https://example.test/form"))

	ghost, _ := d.FindOne(ctx, nil, browser.CSS("#ghost"))
	vis, _ := d.Visible(ctx, ghost)
	assert.False(t, vis)

	next, _ := d.FindOne(ctx, nil, browser.CSS("#next"))
	vis, _ = d.Visible(ctx, next)
	assert.True(t, vis)

	require.NoError(t, d.Click(ctx, next))
	_, err := d.WaitFor(ctx, browser.CSS("#done"), 0)
	require.NoError(t, err)

	// handles from the previous document are stale
	_, err = d.Text(ctx, next)
	assert.Error(t, err)

	_, err = d.WaitFor(ctx, browser.CSS("#missing"), 0)
	assert.ErrorIs(t, err, browser.ErrTimeout)

	assert.Equal(t, []string{"https://example.test/form"}, d.Navigations())
	assert.Equal(t, []string{"button#next"}, d.Clicks())

	require.NoError(t, d.Quit())
	_, err = d.CurrentURL(ctx)
	assert.ErrorIs(t, err, browser.ErrSessionLost)
}
