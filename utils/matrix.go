package utils

import (
	"bytes"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a thin wrapper over a dense gonum matrix with direct access to
// the row-major backing store via DataP.
type Matrix struct {
	M     *mat.Dense
	DataP []float64
}

func NewMatrix(nr, nc int, dataO ...[]float64) (R Matrix) {
	var m *mat.Dense
	if len(dataO) != 0 {
		if len(dataO[0]) != nr*nc {
			err := fmt.Errorf("mismatch in allocation: NewMatrix nr,nc = %v,%v, len(data[0]) = %v\n",
				nr, nc, len(dataO[0]))
			panic(err)
		}
		m = mat.NewDense(nr, nc, dataO[0])
	} else {
		m = mat.NewDense(nr, nc, make([]float64, nr*nc))
	}
	R = Matrix{
		M:     m,
		DataP: m.RawMatrix().Data,
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m Matrix) Dims() (r, c int)    { return m.M.Dims() }
func (m Matrix) At(i, j int) float64 { return m.M.At(i, j) }
func (m Matrix) T() mat.Matrix       { return m.M.T() }

func (m Matrix) IsEmpty() bool { return m.M == nil }

func (m Matrix) Data() []float64 { return m.DataP }

func (m Matrix) Set(i, j int, val float64) Matrix { // Changes receiver
	m.M.Set(i, j, val)
	return m
}

func (m Matrix) Copy() (R Matrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
	)
	R = NewMatrix(nr, nc)
	copy(R.DataP, m.DataP)
	return
}

func (m Matrix) Zero() Matrix { // Changes receiver
	for i := range m.DataP {
		m.DataP[i] = 0.
	}
	return m
}

func (m Matrix) ZeroRow(i int) Matrix { // Changes receiver
	var (
		_, nc = m.Dims()
	)
	for j := 0; j < nc; j++ {
		m.DataP[i*nc+j] = 0.
	}
	return m
}

func (m Matrix) ZeroCol(j int) Matrix { // Changes receiver
	var (
		nr, nc = m.Dims()
	)
	for i := 0; i < nr; i++ {
		m.DataP[i*nc+j] = 0.
	}
	return m
}

func (m Matrix) Col(j int) (V Vector) { // Does not change receiver
	var (
		nr, nc = m.Dims()
		data   = make([]float64, nr)
	)
	for i := 0; i < nr; i++ {
		data[i] = m.DataP[i*nc+j]
	}
	V = NewVector(nr, data)
	return
}

func (m Matrix) Row(i int) (V Vector) { // Does not change receiver
	var (
		_, nc = m.Dims()
		data  = make([]float64, nc)
	)
	copy(data, m.DataP[i*nc:(i+1)*nc])
	V = NewVector(nc, data)
	return
}

func (m Matrix) Add(A Matrix) Matrix { // Changes receiver
	for i, val := range A.DataP {
		m.DataP[i] += val
	}
	return m
}

func (m Matrix) Scale(a float64) Matrix { // Changes receiver
	for i := range m.DataP {
		m.DataP[i] *= a
	}
	return m
}

func (m Matrix) Print(msgI ...string) (out string) {
	var (
		name   = ""
		nr, nc = m.Dims()
	)
	if len(msgI) != 0 {
		name = msgI[0]
	}
	buf := bytes.Buffer{}
	buf.WriteString(fmt.Sprintf("%s = \n", name))
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			buf.WriteString(fmt.Sprintf("%8.4f ", m.At(i, j)))
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
