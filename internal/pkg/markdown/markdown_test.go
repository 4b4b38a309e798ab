package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	assert.Equal(t, "", Render("   "))

	out := Render("**Top Pages**\n\n- Views: 1,200\n- Users: 900")
	assert.Contains(t, out, "<strong>Top Pages</strong>")
	assert.Contains(t, out, "<li>Views: 1,200</li>")

	table := Render("| page | views |\n|---|---|\n| /home | 10 |")
	assert.Contains(t, table, "<table>")
	assert.Contains(t, table, "<td>/home</td>")
}

func TestRenderDropsRawHTML(t *testing.T) {
	out := Render("hello <script>alert(1)</script>")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "<!-- raw HTML omitted -->")
	assert.Contains(t, out, "hello")
}
