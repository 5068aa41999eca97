package utils

import (
	"bytes"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

type Vector struct {
	V     *mat.VecDense
	DataP []float64
}

func NewVector(n int, dataO ...[]float64) (V Vector) {
	var v *mat.VecDense
	if len(dataO) != 0 {
		if len(dataO[0]) != n {
			err := fmt.Errorf("mismatch in allocation: NewVector n = %v, len(data[0]) = %v\n",
				n, len(dataO[0]))
			panic(err)
		}
		v = mat.NewVecDense(n, dataO[0])
	} else {
		v = mat.NewVecDense(n, make([]float64, n))
	}
	V = Vector{
		V:     v,
		DataP: v.RawVector().Data,
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (v Vector) Dims() (r, c int)    { return v.V.Dims() }
func (v Vector) At(i, j int) float64 { return v.V.At(i, j) }
func (v Vector) T() mat.Matrix       { return v.V.T() }

func (v Vector) Len() int            { return v.V.Len() }
func (v Vector) AtVec(i int) float64 { return v.V.AtVec(i) }

func (v Vector) Data() []float64 { return v.DataP }

func (v Vector) Set(i int, val float64) Vector { // Changes receiver
	v.V.SetVec(i, val)
	return v
}

func (v Vector) Copy() (R Vector) { // Does not change receiver
	R = NewVector(v.Len())
	copy(R.DataP, v.DataP)
	return
}

func (v Vector) Zero() Vector { // Changes receiver
	for i := range v.DataP {
		v.DataP[i] = 0.
	}
	return v
}

func (v Vector) Add(a Vector) Vector { // Changes receiver
	for i, val := range a.DataP {
		v.DataP[i] += val
	}
	return v
}

func (v Vector) Scale(a float64) Vector { // Changes receiver
	for i := range v.DataP {
		v.DataP[i] *= a
	}
	return v
}

func (v Vector) Print(msgI ...string) (out string) {
	var (
		name = ""
	)
	if len(msgI) != 0 {
		name = msgI[0]
	}
	buf := bytes.Buffer{}
	buf.WriteString(fmt.Sprintf("%s = \n", name))
	for i := 0; i < v.Len(); i++ {
		buf.WriteString(fmt.Sprintf("%8.4f ", v.AtVec(i)))
	}
	buf.WriteString("\n")
	return buf.String()
}
