// Package blocks holds the block decorators shipped with pageblocks and the
// lookup table the resource loader resolves them from.
//
// Every decorator has the [page.Decorator] signature and only mutates the
// subtree of the block it is given.
package blocks
