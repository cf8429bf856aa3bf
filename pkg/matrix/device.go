package matrix

// DeviceMatrix is the facade behaviors stamp into. AddElement/AddRHS and
// their complex counterparts resolve their target cell on every call;
// GetElement/GetRHS let a behavior fetch a stable ElementHandle/RHSHandle
// once during setup and reuse it across every subsequent iteration.
type DeviceMatrix interface {
	AddElement(i, j int, value float64) // 1-based indexing
	AddRHS(i int, value float64)
	AddComplexElement(i, j int, real, imag float64)
	AddComplexRHS(i int, real, imag float64)

	GetElement(i, j int) ElementHandle
	GetRHS(i int) RHSHandle
}
