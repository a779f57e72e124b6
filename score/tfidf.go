package score

import "fmt"

func init() {
	Register("TfIdf", func() Calculator { return newTfIdf() })
	Register("NormalizedTfIdf", func() Calculator { return newNormalizedTfIdf() })
}

// TfIdf: firstStep is k1 + k2*tf, secondStep is the classic
// log(N/df)/log(N) family selected by x and y. Descriptor parameters are
// k1:k2:x:y.
type tfIdf struct {
	base
	k1, k2 float64
	x      float64
	y      int
}

func newTfIdf() *tfIdf {
	return &tfIdf{k1: 0, k2: 1, x: 0, y: 1}
}

func (c *tfIdf) FirstStep(tf uint32, docID uint32) (float64, bool) {
	return c.k1 + c.k2*float64(tf), true
}

func (c *tfIdf) SecondStep(df, totalDocs int) float64 {
	return idfTerm(c.x, c.y, df, totalDocs)
}

func (c *tfIdf) Prepare(totalDocs, df int) {
	c.totalDocs = totalDocs
	c.prepared = c.SecondStep(df, totalDocs)
}

func (c *tfIdf) Duplicate() Calculator {
	dup := *c
	return &dup
}

func (c *tfIdf) Description() string {
	return fmt.Sprintf("TfIdf:%v:%v:%v:%d", c.k1, c.k2, c.x, c.y)
}

func (c *tfIdf) setParameters(ps []float64) error {
	if len(ps) > 4 {
		return ErrInvalidCalculatorParameter
	}
	if len(ps) >= 1 {
		c.k1 = ps[0]
	}
	if len(ps) >= 2 {
		c.k2 = ps[1]
	}
	if len(ps) >= 3 {
		c.x = ps[2]
	}
	if len(ps) == 4 {
		y := int(ps[3])
		if y < 0 || y > maxIdfFormula {
			return ErrInvalidCalculatorParameter
		}
		c.y = y
	}
	return nil
}

// NormalizedTfIdf: the TfIdf first step normalized by relative document
// length, k1 + k2*tf/((1-lambda) + lambda*len/avgLen). Descriptor
// parameters are k1:k2:x:y:lambda.
type normalizedTfIdf struct {
	tfIdf
	lambda float64
}

func newNormalizedTfIdf() *normalizedTfIdf {
	c := &normalizedTfIdf{lambda: 0.25}
	c.k1, c.k2, c.x, c.y = 0, 1, 0, 1
	return c
}

func (c *normalizedTfIdf) FirstStep(tf uint32, docID uint32) (float64, bool) {
	denom := 1.0 - c.lambda
	if c.lengths != nil {
		length, ok := c.lengths.Length(docID)
		if !ok {
			return 0, false
		}
		if avg := c.averageLength(); avg > 0 {
			denom += c.lambda * float64(length) / avg
		}
	}
	return c.k1 + c.k2*float64(tf)/denom, true
}

func (c *normalizedTfIdf) Duplicate() Calculator {
	dup := *c
	return &dup
}

func (c *normalizedTfIdf) Description() string {
	return fmt.Sprintf("NormalizedTfIdf:%v:%v:%v:%d:%v", c.k1, c.k2, c.x, c.y, c.lambda)
}

func (c *normalizedTfIdf) setParameters(ps []float64) error {
	if len(ps) > 5 {
		return ErrInvalidCalculatorParameter
	}
	if len(ps) == 5 {
		if ps[4] < 0 || ps[4] > 1 {
			return ErrInvalidCalculatorParameter
		}
		c.lambda = ps[4]
		ps = ps[:4]
	}
	return c.tfIdf.setParameters(ps)
}
