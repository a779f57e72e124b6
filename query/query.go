// Package query defines the search query tree and its parsers. A query
// combines term leaves with boolean and positional operators; the engine
// validates the tree into an evaluation DAG before running it.
package query

import (
	"fmt"
	"strings"
)

// Q is one node of a query tree.
type Q interface {
	String() string
}

// Category classifies a wordlist term. Essential terms must occur in
// every matched document; related terms only add score.
type Category int

const (
	CategoryNone Category = iota
	CategoryEssential
	CategoryEssentialRelated
	CategoryImportant
	CategoryImportantRelated
	CategoryHelpful
	CategoryHelpfulRelated
)

func (c Category) String() string {
	switch c {
	case CategoryEssential:
		return "essential"
	case CategoryEssentialRelated:
		return "essential-related"
	case CategoryImportant:
		return "important"
	case CategoryImportantRelated:
		return "important-related"
	case CategoryHelpful:
		return "helpful"
	case CategoryHelpfulRelated:
		return "helpful-related"
	}
	return "none"
}

// Essential reports whether documents must contain this term.
func (c Category) Essential() bool {
	return c == CategoryEssential || c == CategoryEssentialRelated
}

// Term is a leaf: one search term. Calculator optionally overrides the
// query-wide score calculator for this leaf.
type Term struct {
	Text       string
	Category   Category
	Calculator string
}

func (q *Term) String() string {
	if q.Calculator != "" {
		return fmt.Sprintf("term[%s]:%q", q.Calculator, q.Text)
	}
	return fmt.Sprintf("term:%q", q.Text)
}

// Regex is a leaf matched by the rx engine against indexed terms.
type Regex struct {
	Expr string
}

func (q *Regex) String() string {
	return fmt.Sprintf("regex:%q", q.Expr)
}

// And is matched when all children match.
type And struct {
	Children []Q
}

func (q *And) String() string {
	return sexp("and", q.Children)
}

// Or is matched when any child matches.
type Or struct {
	Children []Q
}

func (q *Or) String() string {
	return sexp("or", q.Children)
}

// AndNot is matched when Left matches and Right does not. Right is used
// only for filtering; it contributes no score.
type AndNot struct {
	Left, Right Q
}

func (q *AndNot) String() string {
	return fmt.Sprintf("(and-not %s %s)", q.Left, q.Right)
}

// Window requires all operand positions to fit inside a window of Max
// tokens (and at least Min). Unordered windows accept the operands in
// any order.
type Window struct {
	Min, Max  int
	Unordered bool
	Children  []Q
}

func (q *Window) String() string {
	kind := "window"
	if q.Unordered {
		kind = "uwindow"
	}
	return sexp(fmt.Sprintf("%s[%d,%d]", kind, q.Min, q.Max), q.Children)
}

// Distance requires its two operands in order with a gap in [Min, Max].
type Distance struct {
	Min, Max int
	Children []Q
}

func (q *Distance) String() string {
	return sexp(fmt.Sprintf("distance[%d,%d]", q.Min, q.Max), q.Children)
}

// Word requires its child term to match on word boundaries.
type Word struct {
	Child Q
}

func (q *Word) String() string {
	return fmt.Sprintf("(word %s)", q.Child)
}

// Const matches every document (true) or none (false). It appears as a
// result of simplification.
type Const struct {
	Value bool
}

func (q *Const) String() string {
	if q.Value {
		return "TRUE"
	}
	return "FALSE"
}

func sexp(op string, children []Q) string {
	var sub []string
	for _, ch := range children {
		sub = append(sub, ch.String())
	}
	return fmt.Sprintf("(%s %s)", op, strings.Join(sub, " "))
}

// NewAnd is syntactic sugar for constructing And queries.
func NewAnd(qs ...Q) Q {
	return &And{Children: qs}
}

// NewOr is syntactic sugar for constructing Or queries.
func NewOr(qs ...Q) Q {
	return &Or{Children: qs}
}

// Map runs f over the tree, bottom up.
func Map(q Q, f func(Q) Q) Q {
	switch s := q.(type) {
	case *And:
		ch := make([]Q, len(s.Children))
		for i, c := range s.Children {
			ch[i] = Map(c, f)
		}
		q = &And{Children: ch}
	case *Or:
		ch := make([]Q, len(s.Children))
		for i, c := range s.Children {
			ch[i] = Map(c, f)
		}
		q = &Or{Children: ch}
	case *AndNot:
		q = &AndNot{Left: Map(s.Left, f), Right: Map(s.Right, f)}
	case *Window:
		ch := make([]Q, len(s.Children))
		for i, c := range s.Children {
			ch[i] = Map(c, f)
		}
		q = &Window{Min: s.Min, Max: s.Max, Unordered: s.Unordered, Children: ch}
	case *Distance:
		ch := make([]Q, len(s.Children))
		for i, c := range s.Children {
			ch[i] = Map(c, f)
		}
		q = &Distance{Min: s.Min, Max: s.Max, Children: ch}
	case *Word:
		q = &Word{Child: Map(s.Child, f)}
	}
	return f(q)
}

// VisitTerms calls v on every term leaf of q.
func VisitTerms(q Q, v func(*Term)) {
	Map(q, func(q Q) Q {
		if t, ok := q.(*Term); ok {
			v(t)
		}
		return q
	})
}

// Simplify flattens nested like-operator chains and folds constants:
// and(and(x,y),z) becomes and(x,y,z).
func Simplify(q Q) Q {
	return Map(q, func(q Q) Q {
		switch s := q.(type) {
		case *And:
			var ch []Q
			for _, c := range s.Children {
				switch cc := c.(type) {
				case *And:
					ch = append(ch, cc.Children...)
				case *Const:
					if !cc.Value {
						return &Const{Value: false}
					}
				default:
					ch = append(ch, c)
				}
			}
			if len(ch) == 0 {
				return &Const{Value: true}
			}
			if len(ch) == 1 {
				return ch[0]
			}
			return &And{Children: ch}
		case *Or:
			var ch []Q
			for _, c := range s.Children {
				switch cc := c.(type) {
				case *Or:
					ch = append(ch, cc.Children...)
				case *Const:
					if cc.Value {
						return &Const{Value: true}
					}
				default:
					ch = append(ch, c)
				}
			}
			if len(ch) == 0 {
				return &Const{Value: false}
			}
			if len(ch) == 1 {
				return ch[0]
			}
			return &Or{Children: ch}
		case *AndNot:
			if c, ok := s.Right.(*Const); ok {
				if c.Value {
					return &Const{Value: false}
				}
				return s.Left
			}
			if c, ok := s.Left.(*Const); ok && !c.Value {
				return &Const{Value: false}
			}
			return s
		}
		return q
	})
}
