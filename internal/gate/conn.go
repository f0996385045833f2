package gate

import (
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"syscall"

	"storefront/internal/apperr"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

// IsConnectionError reports whether err means the store itself could not be
// reached, as opposed to a failed query.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var selErr topology.ServerSelectionError
	var netErr net.Error
	switch {
	case errors.As(err, &selErr), mongo.IsNetworkError(err), mongo.IsTimeout(err):
		return true
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return true
	case errors.As(err, &netErr):
		return true
	}
	return false
}

// Fail converts a store error into the taxonomy. Connection failures mark the
// store down so later requests fail fast until the next Refresh; anything else
// is internal.
func (g *Gate) Fail(store Store, op string, err error) error {
	if IsConnectionError(err) {
		g.MarkDown(store, err)
		return apperr.Unavailable(string(store))
	}
	return apperr.Internal(op, err)
}
