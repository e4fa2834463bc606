package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestEOSMarkdown(t *testing.T) {
	md := EOSMarkdown("c", []domain.LatticeSample{
		{Length: 5.3, Energy: -10.49},
		{Length: 5.4, Energy: -10.5},
		{Length: 5.5, Energy: -10.47},
	})
	assert.Contains(t, md, "# Constrained optimization along c")
	assert.Contains(t, md, "| 5.4 | -10.5 | 0.0 | **min** |")
	assert.Contains(t, md, "| 5.5 | -10.47 | 30.0 |  |")
	assert.Contains(t, md, "3 samples, minimum at c = 5.4 Å.")
}

func TestEOSMarkdown_Empty(t *testing.T) {
	md := EOSMarkdown("", nil)
	assert.Contains(t, md, "along length")
	assert.Contains(t, md, "No samples recorded")
}

func TestNewRenderer_Plain(t *testing.T) {
	out, err := NewRenderer(true)("# title\n")
	assert.NoError(t, err)
	assert.Equal(t, "# title\n", out)
}

func TestBannerAndHeader(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "v0.1.0")
	assert.Contains(t, buf.String(), "v0.1.0")

	buf.Reset()
	StepHeader(&buf, 2, "relax2", "/scratch/si")
	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Contains(t, line, "relax2")
	assert.Contains(t, line, "[2]")
}
