// Package barcode provides a pluggable interface for barcode decoding.
//
// The default backend scans for DX film edge codes. Other symbologies can be
// plugged in by implementing Backend; results carry the format they were
// decoded as.
package barcode
