package common

import "fmt"

const (
	NodeCoarseBits  = 14
	NodeCoarseMask  = 1<<NodeCoarseBits - 1
	NodeCoarseShift = 2
	NodeTileSize    = 1 << NodeCoarseShift
)

// NodeAddress identifies a 4x4 tile region, packed as
// coarseX<<18 | coarseY<<4 | underground. Bits 1-3 are reserved.
type NodeAddress uint32

func NewNodeAddress(x, y int, underground bool) NodeAddress {
	cx := uint32(x>>NodeCoarseShift) & NodeCoarseMask
	cy := uint32(y>>NodeCoarseShift) & NodeCoarseMask
	id := cx<<18 | cy<<4
	if underground {
		id |= 1
	}
	return NodeAddress(id)
}

// Tile returns the top left tile of the region.
func (a NodeAddress) Tile() (x, y int, underground bool) {
	x = int((uint32(a)>>18)&NodeCoarseMask) << NodeCoarseShift
	y = int((uint32(a)>>4)&NodeCoarseMask) << NodeCoarseShift
	return x, y, a.Underground()
}

func (a NodeAddress) Underground() bool {
	return a&1 == 1
}

func (a NodeAddress) String() string {
	x, y, underground := a.Tile()
	return fmt.Sprintf("node(%d,%d,%t)", x, y, underground)
}
