// Package template implements best-effort placeholder substitution for
// outbound payloads and endpoint URLs. Placeholders use shell-style
// syntax: $name substitutes the longest run of identifier characters
// after the dollar sign, ${name} substitutes the braced name, and $$
// escapes to a literal dollar sign.
//
// Substitution never fails: a placeholder whose name resolves to
// nothing is left in the output verbatim, so partially configured
// templates remain visible and debuggable instead of aborting a send.
package template

import "strings"

// Resolver looks up a variable by name within an optional context.
// vars.Store satisfies this interface.
type Resolver interface {
	Resolve(context, name string) (string, bool)
}

// Renderer substitutes placeholders using a Resolver.
type Renderer struct {
	vars Resolver
}

// New creates a Renderer backed by the given resolver.
func New(vars Resolver) *Renderer {
	return &Renderer{vars: vars}
}

// Render substitutes all placeholders in s against the given context.
// It is deterministic, has no side effects, and returns s unchanged
// when it contains no dollar signs.
func (r *Renderer) Render(s, context string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		if s[i] != '$' {
			j := strings.IndexByte(s[i:], '$')
			if j < 0 {
				b.WriteString(s[i:])
				break
			}
			b.WriteString(s[i : i+j])
			i += j
			continue
		}

		// A lone trailing dollar sign is literal.
		if i+1 == len(s) {
			b.WriteByte('$')
			break
		}

		switch {
		case s[i+1] == '$':
			b.WriteByte('$')
			i += 2

		case s[i+1] == '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				// Unterminated brace, keep the rest verbatim.
				b.WriteString(s[i:])
				i = len(s)
				continue
			}
			name := s[i+2 : i+2+end]
			if v, ok := r.lookup(context, name); ok {
				b.WriteString(v)
			} else {
				b.WriteString(s[i : i+3+end])
			}
			i += 3 + end

		default:
			n := identLen(s[i+1:])
			if n == 0 {
				b.WriteByte('$')
				i++
				continue
			}
			name := s[i+1 : i+1+n]
			if v, ok := r.lookup(context, name); ok {
				b.WriteString(v)
			} else {
				b.WriteString(s[i : i+1+n])
			}
			i += 1 + n
		}
	}

	return b.String()
}

func (r *Renderer) lookup(context, name string) (string, bool) {
	if name == "" || r.vars == nil {
		return "", false
	}

	return r.vars.Resolve(context, name)
}

// identLen returns the length of the identifier at the start of s.
// Identifiers start with a letter or underscore and continue with
// letters, digits, or underscores.
func identLen(s string) int {
	if len(s) == 0 || !isAlpha(s[0]) {
		return 0
	}

	n := 1
	for n < len(s) && (isAlpha(s[n]) || isDigit(s[n])) {
		n++
	}

	return n
}

func isAlpha(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
