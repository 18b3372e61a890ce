// Package rum implements real user monitoring sampling for rendered pages.
//
// A [Sampler] holds the per page view sample record: weight, view id and a
// random draw that decides, once, whether checkpoints are transmitted. An
// [Observer] turns the first visible intersection of a block or media element
// into a viewblock or viewmedia checkpoint. Visibility tracking always runs;
// only transmission is probabilistic.
package rum
