package query

import (
	"testing"
)

func TestParseInfix(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"foo", `term:"foo"`},
		{"foo bar", `(or term:"foo" term:"bar")`},
		{"foo & bar", `(and term:"foo" term:"bar")`},
		{"(foo & bar) - baz", `(and-not (and term:"foo" term:"bar") term:"baz")`},
		{"a | b | c", `(or term:"a" term:"b" term:"c")`},
		{"a & b & c", `(and term:"a" term:"b" term:"c")`},
		{`"hello world"`, `term:"hello world"`},
		{"a & (b | c)", `(and term:"a" (or term:"b" term:"c"))`},
	}
	for _, tt := range cases {
		t.Run(tt.in, func(t *testing.T) {
			q, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if got := q.String(); got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestParseTea(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"#and(foo,bar)", `(and term:"foo" term:"bar")`},
		{"#or(foo,bar)", `(or term:"foo" term:"bar")`},
		{"#and-not(#and(foo,bar),baz)", `(and-not (and term:"foo" term:"bar") term:"baz")`},
		{"#window[5](a,b)", `(window[1,5] term:"a" term:"b")`},
		{"#window[2,5,u](a,b)", `(uwindow[2,5] term:"a" term:"b")`},
		{"#distance[0,3](a,b)", `(distance[0,3] term:"a" term:"b")`},
		{"#word(run)", `(word term:"run")`},
		{"#regex(ab*c)", `regex:"ab*c"`},
		{"#and(#or(a,b),c)", `(and (or term:"a" term:"b") term:"c")`},
	}
	for _, tt := range cases {
		t.Run(tt.in, func(t *testing.T) {
			q, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if got := q.String(); got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestParseTermAttributes(t *testing.T) {
	q, err := Parse("#term[essential](foo)")
	if err != nil {
		t.Fatal(err)
	}
	tm, ok := q.(*Term)
	if !ok {
		t.Fatalf("got %T, want *Term", q)
	}
	if tm.Category != CategoryEssential {
		t.Errorf("category = %v, want essential", tm.Category)
	}

	q, err = Parse("#term[OkapiTfIdf:0.2:1:1](foo)")
	if err != nil {
		t.Fatal(err)
	}
	tm = q.(*Term)
	if tm.Calculator != "OkapiTfIdf:0.2:1:1" {
		t.Errorf("calculator = %q", tm.Calculator)
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"foo &",
		"& foo",
		"(foo",
		"foo)",
		"#nosuch(a)",
		"#and(a",
		"#and-not(a)",
		"#window[a](x,y)",
		"#window[3,1](x,y)",
		"#distance[0,3](a,b,c)",
		`"unterminated`,
	} {
		t.Run(in, func(t *testing.T) {
			if _, err := Parse(in); err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", in)
			}
		})
	}
}

func TestSimplifyFlattens(t *testing.T) {
	q := NewAnd(NewAnd(&Term{Text: "x"}, &Term{Text: "y"}), &Term{Text: "z"})
	got := Simplify(q).String()
	want := `(and term:"x" term:"y" term:"z")`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestSimplifyConstFolding(t *testing.T) {
	cases := []struct {
		q    Q
		want string
	}{
		{NewAnd(&Const{Value: false}, &Term{Text: "x"}), "FALSE"},
		{NewAnd(&Const{Value: true}, &Term{Text: "x"}), `term:"x"`},
		{NewOr(&Const{Value: true}, &Term{Text: "x"}), "TRUE"},
		{&AndNot{Left: &Term{Text: "x"}, Right: &Const{Value: false}}, `term:"x"`},
		{&AndNot{Left: &Term{Text: "x"}, Right: &Const{Value: true}}, "FALSE"},
	}
	for _, tt := range cases {
		if got := Simplify(tt.q).String(); got != tt.want {
			t.Errorf("Simplify(%s) = %s, want %s", tt.q, got, tt.want)
		}
	}
}

func TestVisitTerms(t *testing.T) {
	q, err := Parse("(foo & bar) - baz")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	VisitTerms(q, func(tm *Term) {
		got = append(got, tm.Text)
	})
	if len(got) != 3 {
		t.Fatalf("terms = %v, want 3", got)
	}
}
