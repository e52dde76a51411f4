/*
NAME
  size.go

DESCRIPTION
  size.go provides calculation of the payload length of fixed size
  portable anymaps.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pnm

import (
	"math"

	"github.com/pkg/errors"
)

// ErrNotFixedSize is returned by PayloadSize for types whose payload length
// is not declared by the header.
var ErrNotFixedSize = errors.New("payload size not fixed")

// PayloadSize returns the exact length in bytes of the payload that follows
// a raw (P4 to P7) header.
func PayloadSize(h Header) (int, error) {
	if h.Family() != FamilyFixed {
		return 0, errors.Wrapf(ErrNotFixedSize, "type %v", h.Type)
	}
	if h.Width <= 0 || h.Height <= 0 || h.Depth <= 0 {
		return 0, errors.Errorf("invalid dimensions %dx%dx%d", h.Width, h.Height, h.Depth)
	}

	// Rows of a raw PBM are packed eight pixels to a byte.
	if h.Type == RawPBM {
		return (h.Width + 7) / 8 * h.Height, nil
	}

	bps := 1
	if h.MaxVal > 255 {
		bps = 2
	}
	n := uint64(h.Width) * uint64(h.Height)
	per := uint64(h.Depth) * uint64(bps)
	if per != 0 && n > math.MaxInt/per {
		return 0, errors.Errorf("payload of %dx%dx%d too large", h.Width, h.Height, h.Depth)
	}
	return int(n * per), nil
}
