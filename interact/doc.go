// Package interact turns pointer gestures over the grid into mutation
// requests.
//
// The interact package implements:
//   - CellAt: pixel to grid cell conversion at a zoom level
//   - FindPath: the staircase path between two cells
//   - Surface: press/move/release tracking that distinguishes clicks from drags
//
// A drag draws or erases roads along the path between the pressed and the
// released cell. A click toggles a vehicle on the pressed cell. Requests are
// only issued; the State changes when the server echoes them back.
package interact
