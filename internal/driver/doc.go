// Package driver maintains the catalog of device driver definitions.
//
// Built-in drivers are parsed from the INDI data directory (XML
// definition files, typically /usr/share/indi). Custom and remote
// drivers supplied by the profile store are layered over the built-in
// set as a replaceable overlay. The supervisor consumes descriptors
// from this catalog when writing start/stop directives to the
// indiserver control FIFO.
package driver
