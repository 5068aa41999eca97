package fem

import (
	"fmt"
	"sort"

	"github.com/tianyikillua/dolfinx/utils"
)

// Kernel evaluates the weak form on a single cell, writing a dense row-major
// local tensor of the exact size implied by the cell's dof counts. w holds
// the packed cell values of the form's coefficients in name order. Must be
// deterministic for identical inputs.
type Kernel interface {
	Tabulate(Ae []float64, w [][]float64, X utils.Matrix)
}

// KernelFunc adapts a plain function to the Kernel interface.
type KernelFunc func(Ae []float64, w [][]float64, X utils.Matrix)

func (f KernelFunc) Tabulate(Ae []float64, w [][]float64, X utils.Matrix) { f(Ae, w, X) }

// CellDomains restricts a form to a marked subset of cells.
type CellDomains struct {
	mesh  Mesh
	cells map[int]bool
}

func NewCellDomains(mesh Mesh, cells []int) (cd *CellDomains) {
	cd = &CellDomains{
		mesh:  mesh,
		cells: make(map[int]bool, len(cells)),
	}
	for _, k := range cells {
		cd.cells[k] = true
	}
	return
}

func (cd *CellDomains) Has(k int) bool { return cd.cells[k] }

// Form is a bilinear (rank 2) or linear (rank 1) variational form: an
// ordered tuple of function spaces, named coefficient fields, optional cell
// domain markers and the cell kernel. All referenced objects must resolve to
// one common mesh. Immutable during assembly except for coefficient
// rebinding between calls.
type Form struct {
	spaces  []*FunctionSpace
	kernel  Kernel
	mesh    Mesh
	coeffs  map[string]*Function
	domains *CellDomains

	// expected element signatures per space, validated by Check
	signatures []string
}

// NewForm builds a rank len(spaces) form. Returns an error when the spaces
// do not share a single mesh.
func NewForm(kernel Kernel, spaces ...*FunctionSpace) (a *Form, err error) {
	if len(spaces) < 1 || len(spaces) > 2 {
		return nil, fmt.Errorf("a form has one or two function spaces, got %d", len(spaces))
	}
	mesh := spaces[0].Mesh()
	for i, V := range spaces {
		if err = checkSameMesh(mesh, V.Mesh(), fmt.Sprintf("function space %d", i)); err != nil {
			return nil, err
		}
	}
	a = &Form{
		spaces: spaces,
		kernel: kernel,
		mesh:   mesh,
		coeffs: make(map[string]*Function),
	}
	return
}

func (a *Form) Rank() int { return len(a.spaces) }

func (a *Form) FunctionSpace(i int) *FunctionSpace { return a.spaces[i] }

func (a *Form) Mesh() Mesh { return a.mesh }

// SetCoefficient binds (or rebinds) a named coefficient field. Rebinding
// between time steps or iterations is the only mutation a form allows.
func (a *Form) SetCoefficient(name string, f *Function) error {
	if err := checkSameMesh(a.mesh, f.V.Mesh(), fmt.Sprintf("coefficient %q", name)); err != nil {
		return err
	}
	a.coeffs[name] = f
	return nil
}

func (a *Form) Coefficient(name string) (*Function, error) {
	f, ok := a.coeffs[name]
	if !ok {
		return nil, fmt.Errorf("form has no coefficient %q", name)
	}
	return f, nil
}

// SetCellDomains restricts assembly to the marked cells.
func (a *Form) SetCellDomains(cd *CellDomains) error {
	if err := checkSameMesh(a.mesh, cd.mesh, "cell domain markers"); err != nil {
		return err
	}
	a.domains = cd
	return nil
}

// SetExpectedSignatures records the element signatures the kernel was built
// for, one per function space, checked by Check.
func (a *Form) SetExpectedSignatures(sigs ...string) {
	a.signatures = sigs
}

// Check validates the form against the elements realized by its function
// spaces. Fatal at form-validation time, before any cell loop runs.
func (a *Form) Check() error {
	if len(a.signatures) == 0 {
		return nil
	}
	if len(a.signatures) != len(a.spaces) {
		return fmt.Errorf("form expects %d element signatures, has %d function spaces",
			len(a.signatures), len(a.spaces))
	}
	for i, sig := range a.signatures {
		have := a.spaces[i].Element().Signature
		if sig != have {
			return fmt.Errorf("element signature mismatch for space %d: form built for %q, space realizes %q",
				i, sig, have)
		}
	}
	return nil
}

// CellActive reports whether cell k contributes to this form.
func (a *Form) CellActive(k int) bool {
	if a.domains == nil {
		return true
	}
	return a.domains.Has(k)
}

// TabulateTensor evaluates the local dense tensor for cell k into Ae,
// packing coefficient cell values in name order.
func (a *Form) TabulateTensor(np int, Ae []float64, k int, X utils.Matrix) {
	var w [][]float64
	if len(a.coeffs) > 0 {
		names := make([]string, 0, len(a.coeffs))
		for name := range a.coeffs {
			names = append(names, name)
		}
		sort.Strings(names)
		w = make([][]float64, len(names))
		for i, name := range names {
			w[i] = a.coeffs[name].CellValues(np, k)
		}
	}
	a.kernel.Tabulate(Ae, w, X)
}
