// Package main provides the entry point for the antmaps CLI.
//
// antmaps lists the ant species that AntWeb specimens were collected for
// around a coordinate, together with one representative photo per species.
//
// Usage:
//
//	antmaps load --lat 26.4 --lon 127.8
//	antmaps load oist okinawa
//	antmaps serve
//
// See --help for all available options.
package main

// main is the entry point for antmaps.
func main() {
	Execute()
}
