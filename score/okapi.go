package score

import (
	"fmt"
	"math"
)

func init() {
	Register("OkapiTf", func() Calculator { return newOkapiTf() })
	Register("NormalizedOkapiTf", func() Calculator { return newNormalizedOkapiTf() })
	Register("OkapiTfIdf", func() Calculator { return newOkapiTfIdf() })
	Register("NormalizedOkapiTfIdf", func() Calculator { return newNormalizedOkapiTfIdf() })
}

// OkapiTf: firstStep is tf / (k + tf), secondStep is 1.
type okapiTf struct {
	base
	k float64
}

func newOkapiTf() *okapiTf {
	return &okapiTf{k: 1.0}
}

func (c *okapiTf) FirstStep(tf uint32, docID uint32) (float64, bool) {
	return float64(tf) / (c.k + float64(tf)), true
}

func (c *okapiTf) SecondStep(df, totalDocs int) float64 { return 1.0 }

func (c *okapiTf) Prepare(totalDocs, df int) {
	c.totalDocs = totalDocs
	c.prepared = c.SecondStep(df, totalDocs)
}

func (c *okapiTf) Duplicate() Calculator {
	dup := *c
	return &dup
}

func (c *okapiTf) Description() string {
	return fmt.Sprintf("OkapiTf:%v", c.k)
}

func (c *okapiTf) setParameters(ps []float64) error {
	if len(ps) > 1 {
		return ErrInvalidCalculatorParameter
	}
	if len(ps) == 1 {
		if ps[0] < 0 {
			return ErrInvalidCalculatorParameter
		}
		c.k = ps[0]
	}
	return nil
}

// NormalizedOkapiTf: tf / (tf + k(1-lambda) + k*lambda*len/avgLen). The
// two k terms are precalculated when the parameters or the length file
// change.
type normalizedOkapiTf struct {
	base
	k, lambda float64
	pre1      float64 // k * (1 - lambda)
	pre2      float64 // k * lambda / averageDocumentLength
}

func newNormalizedOkapiTf() *normalizedOkapiTf {
	c := &normalizedOkapiTf{k: 1.0, lambda: 0.25}
	c.precalculate()
	return c
}

func (c *normalizedOkapiTf) precalculate() {
	c.pre1 = c.k * (1.0 - c.lambda)
	if avg := c.averageLength(); avg > 0 {
		c.pre2 = c.k * c.lambda / avg
	} else {
		c.pre2 = 0
	}
}

func (c *normalizedOkapiTf) SetDocumentLengths(l DocumentLengths) {
	c.base.SetDocumentLengths(l)
	c.precalculate()
}

func (c *normalizedOkapiTf) FirstStep(tf uint32, docID uint32) (float64, bool) {
	denom := float64(tf) + c.pre1
	if c.lengths != nil {
		length, ok := c.lengths.Length(docID)
		if !ok {
			return 0, false
		}
		denom += c.pre2 * float64(length)
	}
	return float64(tf) / denom, true
}

func (c *normalizedOkapiTf) SecondStep(df, totalDocs int) float64 { return 1.0 }

func (c *normalizedOkapiTf) Prepare(totalDocs, df int) {
	c.totalDocs = totalDocs
	c.prepared = c.SecondStep(df, totalDocs)
}

func (c *normalizedOkapiTf) Duplicate() Calculator {
	dup := *c
	return &dup
}

func (c *normalizedOkapiTf) Description() string {
	return fmt.Sprintf("NormalizedOkapiTf:%v:%v", c.k, c.lambda)
}

func (c *normalizedOkapiTf) setParameters(ps []float64) error {
	if len(ps) > 2 {
		return ErrInvalidCalculatorParameter
	}
	if len(ps) >= 1 {
		if ps[0] < 0 {
			return ErrInvalidCalculatorParameter
		}
		c.k = ps[0]
	}
	if len(ps) == 2 {
		if ps[1] < 0 || ps[1] > 1 {
			return ErrInvalidCalculatorParameter
		}
		c.lambda = ps[1]
	}
	c.precalculate()
	return nil
}

// idfTerm computes the document-frequency factor shared by the Okapi IDF
// calculators. y selects the formula; the default y=1 is the Ogawa
// formulation.
func idfTerm(x float64, y int, df, totalDocs int) float64 {
	n := float64(totalDocs)
	d := float64(df)
	switch y {
	case 1:
		if x == 0 {
			return 1.0
		}
		return math.Log(1.0+x*n/d) / math.Log(1.0+x*n)
	case 4:
		return math.Log(1.0 + x/(1.0-x)*n/d)
	case 0:
		return (x + math.Log(n/d)) / (x + math.Log(n))
	case 3:
		return math.Log(x / (1.0 - x) * n / d)
	case 2:
		return (x + math.Log((n-d)/d)) / (x + math.Log(n-1.0))
	case 5:
		return math.Log(x / (1.0 - x) * (n - d) / d)
	}
	return 1.0
}

const maxIdfFormula = 5

// OkapiTfIdf: OkapiTf first step with an IDF second step. Descriptor
// parameters are x:y:k.
type okapiTfIdf struct {
	okapiTf
	x float64
	y int
}

func newOkapiTfIdf() *okapiTfIdf {
	c := &okapiTfIdf{x: 0.2, y: 1}
	c.k = 1.0
	return c
}

func (c *okapiTfIdf) SecondStep(df, totalDocs int) float64 {
	return idfTerm(c.x, c.y, df, totalDocs)
}

func (c *okapiTfIdf) Prepare(totalDocs, df int) {
	c.totalDocs = totalDocs
	c.prepared = c.SecondStep(df, totalDocs)
}

func (c *okapiTfIdf) Duplicate() Calculator {
	dup := *c
	return &dup
}

func (c *okapiTfIdf) Description() string {
	return fmt.Sprintf("OkapiTfIdf:%v:%d:%v", c.x, c.y, c.k)
}

func (c *okapiTfIdf) setParameters(ps []float64) error {
	if len(ps) > 3 {
		return ErrInvalidCalculatorParameter
	}
	if len(ps) >= 1 {
		c.x = ps[0]
	}
	if len(ps) >= 2 {
		y := int(ps[1])
		if y < 0 || y > maxIdfFormula {
			return ErrInvalidCalculatorParameter
		}
		c.y = y
	}
	if len(ps) == 3 {
		if ps[2] < 0 {
			return ErrInvalidCalculatorParameter
		}
		c.k = ps[2]
	}
	return nil
}

// NormalizedOkapiTfIdf: NormalizedOkapiTf first step with an IDF second
// step. Descriptor parameters are x:y:k:lambda.
type normalizedOkapiTfIdf struct {
	normalizedOkapiTf
	x float64
	y int
}

func newNormalizedOkapiTfIdf() *normalizedOkapiTfIdf {
	c := &normalizedOkapiTfIdf{x: 0.2, y: 1}
	c.k = 1.0
	c.lambda = 0.25
	c.precalculate()
	return c
}

func (c *normalizedOkapiTfIdf) SecondStep(df, totalDocs int) float64 {
	return idfTerm(c.x, c.y, df, totalDocs)
}

func (c *normalizedOkapiTfIdf) Prepare(totalDocs, df int) {
	c.totalDocs = totalDocs
	c.prepared = c.SecondStep(df, totalDocs)
}

func (c *normalizedOkapiTfIdf) Duplicate() Calculator {
	dup := *c
	return &dup
}

func (c *normalizedOkapiTfIdf) Description() string {
	return fmt.Sprintf("NormalizedOkapiTfIdf:%v:%d:%v:%v", c.x, c.y, c.k, c.lambda)
}

func (c *normalizedOkapiTfIdf) setParameters(ps []float64) error {
	if len(ps) > 4 {
		return ErrInvalidCalculatorParameter
	}
	if len(ps) >= 1 {
		c.x = ps[0]
	}
	if len(ps) >= 2 {
		y := int(ps[1])
		if y < 0 || y > maxIdfFormula {
			return ErrInvalidCalculatorParameter
		}
		c.y = y
	}
	if len(ps) >= 3 {
		if ps[2] < 0 {
			return ErrInvalidCalculatorParameter
		}
		c.k = ps[2]
	}
	if len(ps) == 4 {
		if ps[3] < 0 || ps[3] > 1 {
			return ErrInvalidCalculatorParameter
		}
		c.lambda = ps[3]
	}
	c.precalculate()
	return nil
}
