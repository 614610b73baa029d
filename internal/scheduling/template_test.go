package scheduling

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name        string
		template    string
		vars        map[string]string
		want        string
		wantMissing []string
	}{
		{
			name:     "all resolved",
			template: "Hello {{name}}, posting on {{day}}",
			vars:     map[string]string{"name": "Ana", "day": "Monday"},
			want:     "Hello Ana, posting on Monday",
		},
		{
			name:     "whitespace trimmed identifier",
			template: "Hello {{ name }}",
			vars:     map[string]string{"name": "Ana"},
			want:     "Hello Ana",
		},
		{
			name:     "duplicate occurrences one lookup",
			template: "{{x}} and {{x}}",
			vars:     map[string]string{"x": "1"},
			want:     "1 and 1",
		},
		{
			name:        "missing left verbatim",
			template:    "Hi {{name}}, see {{link}} and {{link}}",
			vars:        map[string]string{"name": "Ana"},
			want:        "Hi Ana, see {{link}} and {{link}}",
			wantMissing: []string{"link"},
		},
		{
			name:        "missing in first seen order",
			template:    "{{b}} {{a}} {{b}}",
			vars:        map[string]string{},
			want:        "{{b}} {{a}} {{b}}",
			wantMissing: []string{"b", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, missing := Render(tt.template, tt.vars)
			assert.Equal(t, tt.want, out)
			assert.Equal(t, tt.wantMissing, missing)
		})
	}
}

func TestRenderIdempotent(t *testing.T) {
	vars := map[string]string{"name": "Ana", "day": "Monday"}
	out, missing := Render("{{name}} posts on {{day}}", vars)
	require.Empty(t, missing)
	assert.NotContains(t, out, "{{")

	again, missing := Render(out, vars)
	assert.Empty(t, missing)
	assert.Equal(t, out, again)
}

func TestRenderStrict(t *testing.T) {
	_, err := RenderStrict("Hi {{name}}", map[string]string{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "name"))

	out, err := RenderStrict("Hi {{name}}", map[string]string{"name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ana", out)
}

func TestCheckSyntax(t *testing.T) {
	assert.NoError(t, CheckSyntax("plain text"))
	assert.NoError(t, CheckSyntax("a {{x}} b {{y}}"))
	assert.Error(t, CheckSyntax("a {{x} b"))
	assert.Error(t, CheckSyntax("a x}} b"))
	assert.Error(t, CheckSyntax("a {{x {{y}} }}"))
}
