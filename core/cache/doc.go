// Package cache provides read caching for packed archives.
//
// Archives backed by slow sources, such as HTTP range requests, can be
// given a Cache so repeated reads of the same asset are served locally.
// The memory subpackage keeps assets in an LRU bounded by bytes; the disk
// subpackage persists them across processes.
package cache
