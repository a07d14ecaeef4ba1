// Package render draws a world.State onto a grid.
//
// A Scene keeps four layers, bottom to top: grid, edges, vehicles and the
// drag preview. It subscribes to the State and rebuilds only the layer a
// change touches, marking it dirty. Painting goes through the Painter
// interface so the same Scene drives the desktop window and headless PNG
// export (ImagePainter).
package render
