// Package inspector records the module graph for visualization. It is a
// passive observer: the scanner and the instance loader notify it, and it
// never influences resolution. Noop is used when snapshots are disabled.
package inspector
