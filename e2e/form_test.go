//go:build e2e

package e2e

import (
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForm_AddRemoveEntity(t *testing.T) {
	page := newPage(t)
	openForm(t, page)

	require.NoError(t, page.Locator("#add-entity").Click())
	require.NoError(t, page.Locator("#add-entity").Click())
	count, err := page.Locator(".entity").Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, page.Locator(".entity .remove").First().Click())
	count, err = page.Locator(".entity").Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestForm_InvalidSequence(t *testing.T) {
	page := newPage(t)
	openForm(t, page)

	require.NoError(t, page.Locator("textarea[name='primary_sequence']").Fill("MKTXB"))
	require.NoError(t, page.Locator("#submit").Click())

	waitVisible(t, page.Locator("#status .error"))
	text, err := page.Locator("#status .error").TextContent()
	require.NoError(t, err)
	assert.Equal(t, "Error: Invalid protein sequence: contains unsupported characters: BX", text)

	disabled, err := page.Locator("#submit").IsDisabled()
	require.NoError(t, err)
	assert.False(t, disabled, "submit enabled again after rejection")
}

func TestForm_Prediction(t *testing.T) {
	page := newPage(t)
	openForm(t, page)

	require.NoError(t, page.Locator("textarea[name='primary_sequence']").Fill("MKTAYIAKQR"))
	require.NoError(t, page.Locator("#add-entity").Click())
	_, err := page.Locator(".entity select").SelectOption(playwright.SelectOptionValues{Values: playwright.StringSlice("smiles")})
	require.NoError(t, err)
	require.NoError(t, page.Locator(".entity textarea").Fill("CCO"))
	require.NoError(t, page.Locator("input[name='use_physical_potentials']").Check())
	require.NoError(t, page.Locator("#submit").Click())

	waitVisible(t, page.Locator("#status .lifecycle:has-text('Prediction started')"))
	waitVisible(t, page.Locator("#status:has-text('Running inference...')"))
	waitVisible(t, page.Locator("#status .lifecycle:has-text('Prediction completed successfully!')"))
	waitVisible(t, page.Locator("#downloads"))

	href, err := page.Locator("#dl-cif").GetAttribute("href")
	require.NoError(t, err)
	assert.Regexp(t, `^download/[0-9a-f-]{36}/cif$`, href)

	resp, err := page.Request().Get(baseURL + "/" + href)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status())
	body, err := resp.Text()
	require.NoError(t, err)
	assert.Equal(t, "data_model\n", body)

	disabled, err := page.Locator("#submit").IsDisabled()
	require.NoError(t, err)
	assert.False(t, disabled, "submit enabled again after prediction finished")
}
