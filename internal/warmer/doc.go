// Package warmer re-renders a fixed set of pages on an interval.
//
// Rendering a page refreshes its block records, so a warmed page is always
// current on the dashboard even when nobody requests it. The [Scheduler]
// renders every page on start and again each interval, with a bounded
// number of renders in flight.
//
// Users of the pageblocks library configure warming through
// pageblocks.WithWarmPages rather than using this package directly.
package warmer
