// Package acq implements the interrupt driven acquisition engine.
//
// A Session owns a configured bridge chip. Interrupt edges and watchdog
// timeouts are queued as events and handled by a single goroutine, which
// drains the RX FIFO into capture records, resynchronizes after overruns
// and stalls, and tears the session down when its context ends.
package acq
