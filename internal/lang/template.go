package lang

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Expand substitutes {name} placeholders and splits the result into argv
// using shell quoting rules. The command is never run through a shell.
func Expand(tmpl string, vars map[string]string) ([]string, error) {
	var sb strings.Builder
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			sb.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return nil, fmt.Errorf("unterminated placeholder in %q", tmpl)
		}
		name := rest[open+1 : open+end]
		val, ok := vars[name]
		if !ok {
			return nil, fmt.Errorf("unknown placeholder {%s} in %q", name, tmpl)
		}
		if val == "" {
			return nil, fmt.Errorf("placeholder {%s} in %q has no value", name, tmpl)
		}
		sb.WriteString(rest[:open])
		sb.WriteString(val)
		rest = rest[open+end+1:]
	}

	argv, err := shlex.Split(sb.String())
	if err != nil {
		return nil, fmt.Errorf("split %q: %w", tmpl, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command template %q", tmpl)
	}
	return argv, nil
}
