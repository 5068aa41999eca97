package utils

import "fmt"

type Index []int

func NewIndex(N int) (I Index) {
	return make(Index, N)
}

func NewRange(rmin, rmax int) (r Index) {
	var (
		size = rmax - rmin + 1 // INCLUSIVE RANGE
	)
	r = make(Index, size)
	for i := range r {
		r[i] = i + rmin
	}
	return
}

func (I Index) Add(val int) (r Index) {
	r = make(Index, len(I))
	for i, ival := range I {
		r[i] = val + ival
	}
	return r
}

func (I Index) AddInPlace(val int) (r Index) {
	for i := range I {
		I[i] += val
	}
	return I
}

func (I Index) Subset(J Index) (r Index) {
	r = make(Index, len(J))
	for j, val := range J {
		r[j] = I[val]
	}
	return
}

func (I Index) Contains(val int) bool {
	for _, ival := range I {
		if ival == val {
			return true
		}
	}
	return false
}

func (I Index) Min() (min int) {
	if len(I) == 0 {
		panic(fmt.Errorf("empty index"))
	}
	min = I[0]
	for _, ival := range I {
		if ival < min {
			min = ival
		}
	}
	return
}

func (I Index) Max() (max int) {
	if len(I) == 0 {
		panic(fmt.Errorf("empty index"))
	}
	max = I[0]
	for _, ival := range I {
		if ival > max {
			max = ival
		}
	}
	return
}
