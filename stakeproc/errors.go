package stakeproc

import (
	sdkerrors "cosmossdk.io/errors"

	"github.com/avastar/GraftNetwork/stakeerrors"
)

// stakeerrorsIsStaleHistory reports whether err is (or wraps) a
// StaleHistory rejection, so callers can route it to the right metric
// without string-matching the error text.
func stakeerrorsIsStaleHistory(err error) bool {
	return sdkerrors.IsOf(err, stakeerrors.ErrStaleHistory)
}
