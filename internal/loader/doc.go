// Package loader applies a block's stylesheet and decoration logic exactly
// once and moves the block to the loaded state.
//
// This package is internal to pageblocks. The bootstrap phases drive it; the
// block registry guards it. The main components are:
//
//   - [Loader]: status-guarded per-block loading with unbounded fan-out
//   - [Resolver]: the lookup table mapping block names to decorators
//   - [Libs]: the optional shared block library and its block list
//
// A load never fails from the caller's point of view. Stylesheet errors,
// decorator errors and decorator panics are logged and the block is still
// marked loaded, so one broken block cannot abort the page.
package loader
