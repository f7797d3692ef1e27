package templates

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginTemplateRendersError(t *testing.T) {
	tmpl, err := Parse()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tmpl.ExecuteTemplate(&buf, "login.html", map[string]any{
		"Error":    "Access denied",
		"Username": "<alice>",
	}))
	assert.Contains(t, buf.String(), "Access denied")
	assert.Contains(t, buf.String(), "&lt;alice&gt;")

	buf.Reset()
	require.NoError(t, tmpl.ExecuteTemplate(&buf, "login.html", map[string]any{}))
	assert.NotContains(t, buf.String(), "Access denied")
}
