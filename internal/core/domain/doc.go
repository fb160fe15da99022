// Package domain defines the data exchanged between the download core and its
// adapters: classified links, media items and their streams, per-item
// results, and the error taxonomy every adapter maps into.
package domain
