// Package path implements the ASL JSONPath subset (§4.1 of the
// specification): `$`, `.field`, `[i]`, `[*]`, and concatenation of
// those. Reads and writes operate on jsonvalue.Value and are
// implemented on top of github.com/tidwall/gjson and
// github.com/tidwall/sjson, which already provide exactly this kind
// of dotted-path JSON query/patch engine — we translate the ASL
// bracket grammar into their dot+index grammar rather than
// reimplementing a JSON query engine from scratch.
package path

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/stepflow/stepflow/jsonvalue"
)

// segments splits an ASL JSONPath expression into its dotted/indexed
// components. "$" means "the whole value" and yields no segments; an
// empty expr is rejected here. Set treats an empty expr as a no-op
// before calling segments; Get passes it through and returns the error.
func segments(expr string) ([]string, error) {
	s := strings.TrimSpace(expr)
	if s == "$" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "$") {
		return nil, fmt.Errorf("path: expression must start with $: %q", expr)
	}
	s = s[1:]

	var segs []string
	i := 0
	for i < len(s) {
		switch s[i] {
		case '.':
			i++
			start := i
			for i < len(s) && s[i] != '.' && s[i] != '[' {
				i++
			}
			if i == start {
				return nil, fmt.Errorf("path: empty field name in %q", expr)
			}
			segs = append(segs, s[start:i])
		case '[':
			i++
			start := i
			for i < len(s) && s[i] != ']' {
				i++
			}
			if i >= len(s) {
				return nil, fmt.Errorf("path: unterminated [ in %q", expr)
			}
			segs = append(segs, s[start:i])
			i++
		default:
			return nil, fmt.Errorf("path: unexpected character %q at %d in %q", s[i], i, expr)
		}
	}
	return segs, nil
}

func gjsonPath(segs []string) string {
	mapped := make([]string, len(segs))
	for i, s := range segs {
		if s == "*" {
			mapped[i] = "#"
		} else {
			mapped[i] = s
		}
	}
	return strings.Join(mapped, ".")
}

func sjsonPath(segs []string) (string, error) {
	mapped := make([]string, len(segs))
	for i, s := range segs {
		if s == "*" {
			return "", fmt.Errorf("path: wildcard [*] is not writable")
		}
		mapped[i] = s
	}
	return strings.Join(mapped, "."), nil
}

// Get reads expr out of root. The second return value is false when
// the path is absent — ASL's "not present" sentinel, distinct from a
// present JSON null.
func Get(root jsonvalue.Value, expr string) (jsonvalue.Value, bool, error) {
	segs, err := segments(expr)
	if err != nil {
		return jsonvalue.Value{}, false, err
	}
	if len(segs) == 0 {
		return root, true, nil
	}

	gp := gjsonPath(segs)
	res := gjson.GetBytes(root.Bytes(), gp)
	if !res.Exists() {
		return jsonvalue.Value{}, false, nil
	}

	v, err := jsonvalue.Parse([]byte(res.Raw))
	if err != nil {
		return jsonvalue.Value{}, false, fmt.Errorf("path: parsing result of %q: %w", expr, err)
	}
	return v, true, nil
}

// Exists reports whether expr resolves to a present value in root.
func Exists(root jsonvalue.Value, expr string) bool {
	_, ok, err := Get(root, expr)
	return err == nil && ok
}

// Set writes newVal at expr within root and returns the new root.
// expr == "$" replaces the root entirely. expr == "" is a no-op,
// returning root unchanged (ASL's "ResultPath: null discards the
// result, keeping the original input" behavior is implemented by the
// data-flow pipeline calling Set only when ResultPath is non-null;
// Set itself treats an empty path as "nothing to do" for symmetry).
// Intermediate objects along the path are created automatically.
func Set(root jsonvalue.Value, expr string, newVal jsonvalue.Value) (jsonvalue.Value, error) {
	if strings.TrimSpace(expr) == "" {
		return root, nil
	}

	segs, err := segments(expr)
	if err != nil {
		return jsonvalue.Value{}, err
	}
	if len(segs) == 0 {
		return newVal, nil
	}

	sp, err := sjsonPath(segs)
	if err != nil {
		return jsonvalue.Value{}, err
	}

	merged, err := sjson.SetRawBytes(root.Bytes(), sp, newVal.Bytes())
	if err != nil {
		return jsonvalue.Value{}, fmt.Errorf("path: writing %q: %w", expr, err)
	}

	v, err := jsonvalue.Parse(merged)
	if err != nil {
		return jsonvalue.Value{}, fmt.Errorf("path: parsing merged result of %q: %w", expr, err)
	}
	return v, nil
}
