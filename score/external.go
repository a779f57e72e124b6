package score

import (
	"fmt"
	"strings"
)

// External calculators are supplied by the embedding application as Go
// implementations registered by name. The descriptor form is
// "External:<name>:<params...>": the first parameter selects the
// implementation, the rest are handed to it.

type externalFactory func(params []float64) (Calculator, error)

var externals = map[string]externalFactory{}

// RegisterExternal makes an application calculator available under
// "External:<name>".
func RegisterExternal(name string, f func(params []float64) (Calculator, error)) {
	if _, ok := externals[name]; ok {
		panic(fmt.Sprintf("score: duplicate external calculator %q", name))
	}
	externals[name] = f
}

func newExternal(params string) (Calculator, error) {
	name := params
	rest := ""
	if i := strings.IndexByte(params, ':'); i >= 0 {
		name, rest = params[:i], params[i+1:]
	}
	f, ok := externals[name]
	if !ok {
		return nil, fmt.Errorf("%w: external %q", ErrInvalidCalculator, name)
	}
	var ps []float64
	if rest != "" {
		var err error
		ps, err = splitParameters(rest)
		if err != nil {
			return nil, err
		}
	}
	return f(ps)
}
