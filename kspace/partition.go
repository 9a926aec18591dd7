// SPDX-License-Identifier: MIT

package kspace

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGeometry indicates cube dimensions the vis-ordering cannot represent.
	ErrInvalidGeometry = errors.New("kspace: invalid geometry")

	// ErrEmptyBin indicates a partition bin with no voxels.
	ErrEmptyBin = errors.New("kspace: empty bin")

	// ErrVoxelOutOfRange indicates a voxel index outside [0, npar).
	ErrVoxelOutOfRange = errors.New("kspace: voxel index out of range")

	// ErrVoxelReused indicates a voxel assigned to more than one bin.
	ErrVoxelReused = errors.New("kspace: voxel in more than one bin")

	// ErrLengthMismatch indicates mask and |k| vectors of different length.
	ErrLengthMismatch = errors.New("kspace: length mismatch")
)

// Partition lists, per spherical |k| bin, the vis-ordered voxel indices that
// fall in it. Bins are disjoint; voxels in no bin are masked out.
type Partition [][]int

// Len returns the number of bins.
func (p Partition) Len() int { return len(p) }

// Voxels returns the total number of binned voxels.
func (p Partition) Voxels() int {
	n := 0
	for _, b := range p {
		n += len(b)
	}

	return n
}

// Validate checks every bin is non-empty, every index lies in [0, npar) and
// no index appears twice.
//
// Complexity: O(npar + Voxels()).
func (p Partition) Validate(npar int) error {
	seen := make([]bool, npar)
	for i, bin := range p {
		if len(bin) == 0 {
			return fmt.Errorf("Partition.Validate: bin %d: %w", i, ErrEmptyBin)
		}
		for _, v := range bin {
			if v < 0 || v >= npar {
				return fmt.Errorf("Partition.Validate: bin %d voxel %d: %w", i, v, ErrVoxelOutOfRange)
			}
			if seen[v] {
				return fmt.Errorf("Partition.Validate: bin %d voxel %d: %w", i, v, ErrVoxelReused)
			}
			seen[v] = true
		}
	}

	return nil
}
