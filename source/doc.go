// Package source provides record sources: a metronome, line readers for
// files and serial devices, a UDP listener, an HTTP poller and an HTTP
// receiver. OpenPort opens a serial device with its baud rate, parity and
// stop bits for Serial.
//
// Every source is a lazy *pipeline.Pipeline[*record.Record]; nothing is
// opened until the pipeline is iterated, and closing the iterator releases
// the socket, port or server it opened. Most sources never end on their
// own; bound them with pipeline.Count, Duration, Timeout or Until.
package source
