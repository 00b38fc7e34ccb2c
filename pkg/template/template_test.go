package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wsling/wsling/pkg/vars"
)

// recordingResolver fails lookups and counts them, to prove escapes
// never hit the store.
type recordingResolver struct {
	calls int
}

func (r *recordingResolver) Resolve(_, _ string) (string, bool) {
	r.calls++
	return "", false
}

func newStore(t *testing.T) *vars.Store {
	t.Helper()

	var s vars.Store
	for name, value := range map[string]string{
		"host": "b.example",
		"user": "alice",
	} {
		if err := s.SetGlobal(name, value); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.SetContext("prod", "host", "a.example"); err != nil {
		t.Fatal(err)
	}

	return &s
}

func TestRender(t *testing.T) {
	r := New(newStore(t))

	tests := []struct {
		name    string
		in      string
		context string
		want    string
	}{
		{"no placeholders", "hello world", "", "hello world"},
		{"bare name", "host=$host", "", "host=b.example"},
		{"braced name", "host=${host}", "", "host=b.example"},
		{"braced glued to text", "${host}s", "", "b.examples"},
		{"context override", "ws://$host/u/$user", "prod", "ws://a.example/u/alice"},
		{"unresolved bare left verbatim", "hi $missing!", "", "hi $missing!"},
		{"unresolved braced left verbatim", "hi ${missing}!", "", "hi ${missing}!"},
		{"trailing dollar", "cost: 5$", "", "cost: 5$"},
		{"dollar before non-identifier", "a$ b", "", "a$ b"},
		{"dollar before digit", "$1", "", "$1"},
		{"unterminated brace", "x${host", "", "x${host"},
		{"empty braces", "${}", "", "${}"},
		{"adjacent placeholders", "$host$user", "", "b.examplealice"},
		{"underscore name unresolved", "$_host", "", "$_host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Render(tt.in, tt.context))
		})
	}
}

func TestRenderEscape(t *testing.T) {
	res := &recordingResolver{}
	r := New(res)

	assert.Equal(t, "$x", r.Render("$$x", ""))
	assert.Equal(t, "literal $host", r.Render("literal $$host", ""))
	assert.Zero(t, res.calls, "escapes must not trigger lookups")
}

func TestRenderIdempotentWithoutPlaceholders(t *testing.T) {
	r := New(newStore(t))

	for _, s := range []string{"", "plain", `{"json": true}`, "multi\nline"} {
		assert.Equal(t, s, r.Render(s, "prod"))
	}
}

func TestRenderNilResolver(t *testing.T) {
	r := New(nil)

	assert.Equal(t, "hi $user", r.Render("hi $user", ""))
}
