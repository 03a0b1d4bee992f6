// internal/catalog/domain.go
package catalog

import "errors"

// ErrNoCopies rejects an intake request for zero or negative copies.
var ErrNoCopies = errors.New("at least one copy is required")
