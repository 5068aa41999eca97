package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	data := `
Title: Poisson
ElementCount: 100
XMin: 0
XMax: 1
Ranks: 4
Layout: single
Source: 1
BCs:
  Dirichlet:
    Left: 0
    Right: 1
`
	ap := &AssemblyParameters{}
	assert.NoError(t, ap.Parse([]byte(data)))
	assert.Equal(t, "Poisson", ap.Title)
	assert.Equal(t, 100, ap.ElementCount)
	assert.Equal(t, 4, ap.Ranks)
	assert.Equal(t, 1., ap.BCs["Dirichlet"]["Right"])
	ap.Print()
}

func TestParseInvalid(t *testing.T) {
	ap := &AssemblyParameters{}
	assert.Error(t, ap.Parse([]byte("ElementCount: 0\nXMax: 1")))

	ap = &AssemblyParameters{}
	assert.Error(t, ap.Parse([]byte("ElementCount: 10\nXMin: 1\nXMax: 0")))

	ap = &AssemblyParameters{}
	assert.Error(t, ap.Parse([]byte("ElementCount: 10\nXMax: 1\nLayout: diagonal")))

	// Ranks defaults to one when omitted
	ap = &AssemblyParameters{}
	assert.NoError(t, ap.Parse([]byte("ElementCount: 10\nXMax: 1")))
	assert.Equal(t, 1, ap.Ranks)
}
