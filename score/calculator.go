// Package score implements the ranking score calculators. A calculator
// scores in two steps: firstStep turns a per-document term frequency into
// a partial score during traversal, secondStep contributes the
// IDF-like factor once per term. Calculators needing collection-wide
// statistics implement the extended first step, which runs after the
// traversal has buffered all (docID, tf) pairs.
package score

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidCalculator is returned for an unknown calculator name.
	ErrInvalidCalculator = errors.New("score: invalid calculator")

	// ErrInvalidCalculatorParameter is returned when a descriptor's
	// parameters do not parse or are out of range.
	ErrInvalidCalculatorParameter = errors.New("score: invalid calculator parameter")
)

// DocumentLengths provides document lengths for length-normalized
// calculators. Length reports false when the length of a document is
// unknown.
type DocumentLengths interface {
	Length(docID uint32) (uint32, bool)
	Average() float64
}

// CollectionStats are the corpus-wide totals needed by extended
// calculators.
type CollectionStats struct {
	TotalTermFrequency  uint64
	TotalDocumentLength uint64
	QueryTermFrequency  uint32
}

// Calculator scores one term. Implementations are stateful (document
// length file, prepared second step) and are duplicated into each query
// leaf rather than shared.
type Calculator interface {
	// FirstStep computes the partial score for one document. The second
	// result is false when the document must be skipped (unknown length).
	FirstStep(tf uint32, docID uint32) (float64, bool)

	// SecondStep computes the document-frequency factor.
	SecondStep(df int, totalDocs int) float64

	// Prepare caches SecondStep(df, totalDocs) for repeated use.
	Prepare(totalDocs int, df int)

	// Prepared returns the cached SecondStep result.
	Prepared() float64

	// SetDocumentLengths attaches the document-length accessor.
	SetDocumentLengths(l DocumentLengths)

	// Duplicate returns an independent copy.
	Duplicate() Calculator

	// Description returns the descriptor string that recreates this
	// calculator.
	Description() string
}

// Extended is implemented by calculators whose first step depends on
// collection statistics that are only known after the first traversal
// pass. The engine buffers (docID, tf) pairs and calls FirstStepEx in a
// trailing pass.
type Extended interface {
	Calculator

	// PrepareEx supplies the collection statistics.
	PrepareEx(stats CollectionStats)

	// FirstStepEx is the deferred per-document first step.
	FirstStepEx(tf uint32, docID uint32) (float64, bool)
}

type factory func() Calculator

var calculators = map[string]factory{}

// Register makes a calculator constructor available to New under name.
// External calculators register here; the name must be unique.
func Register(name string, f func() Calculator) {
	if _, ok := calculators[name]; ok {
		panic(fmt.Sprintf("score: duplicate calculator %q", name))
	}
	calculators[name] = f
}

// New creates a calculator from a descriptor like "OkapiTfIdf:0.2:1:1":
// the first token names the calculator, the rest are colon-separated
// parameters interpreted by the calculator itself.
func New(description string) (Calculator, error) {
	name := description
	params := ""
	if i := strings.IndexByte(description, ':'); i >= 0 {
		name, params = description[:i], description[i+1:]
	}
	if name == "" {
		name = defaultName
	}
	if name == "External" {
		return newExternal(params)
	}
	f, ok := calculators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCalculator, name)
	}
	c := f()
	if params != "" {
		ps, err := splitParameters(params)
		if err != nil {
			return nil, err
		}
		p, ok := c.(parameterized)
		if !ok {
			return nil, fmt.Errorf("%w: %q takes no parameters", ErrInvalidCalculatorParameter, name)
		}
		if err := p.setParameters(ps); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// defaultName is used for an empty descriptor.
const defaultName = "NormalizedOkapiTfIdf"

type parameterized interface {
	setParameters([]float64) error
}

func splitParameters(s string) ([]float64, error) {
	parts := strings.Split(s, ":")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCalculatorParameter, p)
		}
		out[i] = v
	}
	return out, nil
}

// base carries the state shared by all calculators.
type base struct {
	lengths   DocumentLengths
	totalDocs int
	prepared  float64
}

func (b *base) Prepared() float64                    { return b.prepared }
func (b *base) SetDocumentLengths(l DocumentLengths) { b.lengths = l }

// averageLength returns the average document length, or 0 when no length
// file is attached.
func (b *base) averageLength() float64 {
	if b.lengths == nil {
		return 0
	}
	return b.lengths.Average()
}
