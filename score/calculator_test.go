package score

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

type fixedLengths struct {
	lengths map[uint32]uint32
	avg     float64
}

func (f fixedLengths) Length(docID uint32) (uint32, bool) {
	l, ok := f.lengths[docID]
	return l, ok
}

func (f fixedLengths) Average() float64 { return f.avg }

func TestNewDescriptors(t *testing.T) {
	cases := []struct {
		desc    string
		wantErr error
	}{
		{"OkapiTf", nil},
		{"OkapiTf:2.0", nil},
		{"OkapiTfIdf:0.2:1:1", nil},
		{"NormalizedOkapiTf:1:0.5", nil},
		{"NormalizedOkapiTfIdf:0.2:1:1:0.25", nil},
		{"TfIdf:0:1:0.2:1", nil},
		{"NormalizedTfIdf:0:1:0.2:1:0.5", nil},
		{"", nil}, // default calculator
		{"NoSuchCalculator", ErrInvalidCalculator},
		{"OkapiTf:abc", ErrInvalidCalculatorParameter},
		{"OkapiTf:-1", ErrInvalidCalculatorParameter},
		{"OkapiTf:1:2", ErrInvalidCalculatorParameter},
		{"OkapiTfIdf:0.2:99", ErrInvalidCalculatorParameter},
		{"NormalizedOkapiTf:1:2", ErrInvalidCalculatorParameter}, // lambda > 1
	}
	for _, tt := range cases {
		t.Run(tt.desc, func(t *testing.T) {
			c, err := New(tt.desc)
			if tt.wantErr != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tt.wantErr), "err = %v", err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, c)
		})
	}
}

func TestDescriptionRoundTrip(t *testing.T) {
	for _, desc := range []string{
		"OkapiTf:2",
		"OkapiTfIdf:0.2:1:1",
		"NormalizedOkapiTf:1:0.5",
		"TfIdf:0:1:0.2:1",
	} {
		c, err := New(desc)
		require.NoError(t, err)
		c2, err := New(c.Description())
		require.NoError(t, err, "description %q", c.Description())
		require.Equal(t, c.Description(), c2.Description())
	}
}

func TestOkapiTfFirstStep(t *testing.T) {
	c, err := New("OkapiTf:1")
	require.NoError(t, err)
	got, ok := c.FirstStep(3, 1)
	require.True(t, ok)
	require.InDelta(t, 3.0/4.0, got, 1e-12)

	// monotone in tf
	prev := 0.0
	for tf := uint32(1); tf < 20; tf++ {
		s, _ := c.FirstStep(tf, 1)
		require.Greater(t, s, prev)
		prev = s
	}
}

func TestOkapiTfIdfSecondStep(t *testing.T) {
	c, err := New("OkapiTfIdf:0.2:1:1")
	require.NoError(t, err)

	// Ogawa formulation: log(1 + x*N/df) / log(1 + x*N)
	n, df := 1000, 10
	want := math.Log(1.0+0.2*float64(n)/float64(df)) / math.Log(1.0+0.2*float64(n))
	require.InDelta(t, want, c.SecondStep(df, n), 1e-12)

	// rarer terms weigh more
	require.Greater(t, c.SecondStep(1, n), c.SecondStep(100, n))

	// x=0 collapses to a constant 1
	c0, err := New("OkapiTfIdf:0")
	require.NoError(t, err)
	require.Equal(t, 1.0, c0.SecondStep(5, n))
}

func TestPrepareCachesSecondStep(t *testing.T) {
	c, err := New("OkapiTfIdf:0.2:1:1")
	require.NoError(t, err)
	c.Prepare(100, 7)
	require.Equal(t, c.SecondStep(7, 100), c.Prepared())
}

func TestNormalizedOkapiTfLengths(t *testing.T) {
	c, err := New("NormalizedOkapiTf:1:0.5")
	require.NoError(t, err)
	c.SetDocumentLengths(fixedLengths{
		lengths: map[uint32]uint32{1: 10, 2: 40},
		avg:     20,
	})

	// same tf: the shorter document scores higher
	short, ok := c.FirstStep(5, 1)
	require.True(t, ok)
	long, ok := c.FirstStep(5, 2)
	require.True(t, ok)
	require.Greater(t, short, long)

	// a document without a known length is skipped
	_, ok = c.FirstStep(5, 99)
	require.False(t, ok)
}

func TestDuplicateIsIndependent(t *testing.T) {
	c, err := New("NormalizedOkapiTf:1:0.5")
	require.NoError(t, err)
	dup := c.Duplicate()
	dup.SetDocumentLengths(fixedLengths{lengths: map[uint32]uint32{1: 10}, avg: 10})

	// the original still has no length file: FirstStep must not skip
	_, ok := c.FirstStep(1, 1)
	require.True(t, ok)
	require.Equal(t, c.Description(), dup.Description())
}

type testExternal struct {
	base
	weight float64
	stats  CollectionStats
}

func (c *testExternal) FirstStep(tf uint32, docID uint32) (float64, bool) {
	return float64(tf) * c.weight, true
}

func (c *testExternal) SecondStep(df, totalDocs int) float64 { return 1.0 }

func (c *testExternal) Prepare(totalDocs, df int) {
	c.totalDocs = totalDocs
	c.prepared = 1.0
}

func (c *testExternal) Duplicate() Calculator {
	dup := *c
	return &dup
}

func (c *testExternal) Description() string { return "External:test:1" }

func (c *testExternal) PrepareEx(stats CollectionStats) { c.stats = stats }

func (c *testExternal) FirstStepEx(tf uint32, docID uint32) (float64, bool) {
	if c.stats.TotalTermFrequency == 0 {
		return 0, false
	}
	return float64(tf) * c.weight / float64(c.stats.TotalTermFrequency), true
}

func TestExternalRegistry(t *testing.T) {
	RegisterExternal("test", func(params []float64) (Calculator, error) {
		w := 1.0
		if len(params) > 0 {
			w = params[0]
		}
		return &testExternal{weight: w}, nil
	})

	c, err := New("External:test:2.5")
	require.NoError(t, err)
	got, ok := c.FirstStep(2, 1)
	require.True(t, ok)
	require.Equal(t, 5.0, got)

	ext, ok := c.(Extended)
	require.True(t, ok)
	ext.PrepareEx(CollectionStats{TotalTermFrequency: 10})
	deferred, ok := ext.FirstStepEx(2, 1)
	require.True(t, ok)
	require.Equal(t, 0.5, deferred)

	_, err = New("External:missing")
	require.Error(t, err)
}
