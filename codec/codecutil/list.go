/*
NAME
  list.go

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package codecutil provides utilities shared by the codec lexers.
package codecutil

// All available codecs for reference in any application.
// When adding or removing a codec from this list, the IsValid and Extension
// functions below must be updated.
const (
	PNM = "pnm" // Any mix of the portable anymap family (requires lexing).
	PBM = "pbm" // Portable bitmap, P1 and P4.
	PGM = "pgm" // Portable graymap, P2 and P5.
	PPM = "ppm" // Portable pixmap, P3 and P6.
	PAM = "pam" // Portable arbitrary map, P7.
)

// IsValid checks if a string is a known and valid codec in the right format.
func IsValid(s string) bool {
	switch s {
	case PNM, PBM, PGM, PPM, PAM:
		return true
	default:
		return false
	}
}

// Extension returns the conventional file extension for the portable anymap
// with the given magic number digit, or PNM if the digit is unknown.
func Extension(magic byte) string {
	switch magic {
	case '1', '4':
		return PBM
	case '2', '5':
		return PGM
	case '3', '6':
		return PPM
	case '7':
		return PAM
	default:
		return PNM
	}
}
