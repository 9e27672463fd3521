// Package capture defines the capture record and its textual log format.
package capture

// A log holds one line per record:
//
//	TTTTTTTT, CC, SS, NN, WWWWWWWW, WWWWWWWW, ...
//
// T is the tick in hex, C the interrupt cause, S the line status
// (00 when not read), N the number of words that follow and W the
// sample words. Lines are only ever appended.
