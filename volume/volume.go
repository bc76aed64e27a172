// Package volume provides the in-memory representation of an acquired brain
// volume and a codec for the NIfTI-1 single-file format used by the scanner
// export.
package volume

import (
	"fmt"
	"math"
)

// Volume is one decoded acquisition. Data is stored x-fastest (Fortran
// order), matching the on-disk NIfTI layout, with len(Data) == X*Y*Z.
type Volume struct {
	Shape  [3]int
	Affine [4][4]float64
	Data   []float64
}

// NumVoxels returns the total voxel count of the volume.
func (v *Volume) NumVoxels() int {
	return v.Shape[0] * v.Shape[1] * v.Shape[2]
}

// At returns the value at voxel (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[x+v.Shape[0]*(y+v.Shape[1]*z)]
}

// Set writes the value at voxel (x, y, z).
func (v *Volume) Set(x, y, z int, val float64) {
	v.Data[x+v.Shape[0]*(y+v.Shape[1]*z)] = val
}

// New allocates a zero-filled volume with the given shape and an identity
// affine.
func New(shape [3]int) *Volume {
	v := &Volume{
		Shape: shape,
		Data:  make([]float64, shape[0]*shape[1]*shape[2]),
	}
	for i := 0; i < 4; i++ {
		v.Affine[i][i] = 1
	}
	return v
}

// SameGrid reports whether two volumes share shape and rotation/scaling part
// of the affine (translation differences are tolerated, they are what motion
// correction estimates).
func (v *Volume) SameGrid(other *Volume) bool {
	if v.Shape != other.Shape {
		return false
	}
	const tol = 1e-4
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(v.Affine[i][j]-other.Affine[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

// CenterOfMass returns the intensity-weighted centroid in voxel coordinates.
// Uniformly zero volumes return the geometric center.
func (v *Volume) CenterOfMass() [3]float64 {
	var sum, cx, cy, cz float64
	nx, ny, nz := v.Shape[0], v.Shape[1], v.Shape[2]
	i := 0
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				w := v.Data[i]
				i++
				if w <= 0 {
					continue
				}
				sum += w
				cx += w * float64(x)
				cy += w * float64(y)
				cz += w * float64(z)
			}
		}
	}
	if sum == 0 {
		return [3]float64{float64(nx-1) / 2, float64(ny-1) / 2, float64(nz-1) / 2}
	}
	return [3]float64{cx / sum, cy / sum, cz / sum}
}

// Shift returns a copy of the volume translated by the given integer voxel
// offsets, filling exposed voxels with zero.
func (v *Volume) Shift(dx, dy, dz int) *Volume {
	out := New(v.Shape)
	out.Affine = v.Affine
	nx, ny, nz := v.Shape[0], v.Shape[1], v.Shape[2]
	for z := 0; z < nz; z++ {
		sz := z - dz
		if sz < 0 || sz >= nz {
			continue
		}
		for y := 0; y < ny; y++ {
			sy := y - dy
			if sy < 0 || sy >= ny {
				continue
			}
			for x := 0; x < nx; x++ {
				sx := x - dx
				if sx < 0 || sx >= nx {
					continue
				}
				out.Set(x, y, z, v.At(sx, sy, sz))
			}
		}
	}
	return out
}

// validateShape rejects degenerate dimensions before allocation.
func validateShape(shape [3]int) error {
	const maxDim = 4096
	for i, d := range shape {
		if d <= 0 || d > maxDim {
			return fmt.Errorf("dimension %d out of range: %d", i, d)
		}
	}
	return nil
}
