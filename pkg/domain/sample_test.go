package domain_test

import (
	"strings"
	"testing"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleSet_UniqueAndSorted(t *testing.T) {
	var s domain.SampleSet
	s.Record(4.1, -10.2)
	s.Record(3.9, -10.1)
	s.Record(4.0, -10.5)
	s.Record(4.1, -10.3)

	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Has(4.0))
	e, ok := s.Energy(4.1)
	require.True(t, ok)
	assert.Equal(t, -10.3, e)

	sorted := s.Sorted()
	assert.Equal(t, []float64{3.9, 4.0, 4.1}, []float64{sorted[0].Length, sorted[1].Length, sorted[2].Length})

	var b strings.Builder
	require.NoError(t, s.WriteTable(&b, "c"))
	assert.Equal(t, "# c energy\n3.9 -10.1\n4 -10.5\n4.1 -10.3\n", b.String())
}

func TestReadTable(t *testing.T) {
	var s domain.SampleSet
	s.Record(5.5, -10.25)
	s.Record(5.4, -10.5)
	var buf strings.Builder
	require.NoError(t, s.WriteTable(&buf, "c"))

	dir, samples, err := domain.ReadTable(strings.NewReader(buf.String() + "\n"))
	require.NoError(t, err)
	assert.Equal(t, "c", dir)
	assert.Equal(t, []domain.LatticeSample{{Length: 5.4, Energy: -10.5}, {Length: 5.5, Energy: -10.25}}, samples)

	_, _, err = domain.ReadTable(strings.NewReader("# a energy\n5.4\n"))
	assert.ErrorContains(t, err, "line 2")
	_, _, err = domain.ReadTable(strings.NewReader("5.4 x\n"))
	assert.Error(t, err)
}
