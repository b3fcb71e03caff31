// Package runid issues sortable identifiers for pipeline runs.
package runid

import "github.com/oklog/ulid/v2"

// New returns a fresh ULID string. IDs from one process sort by creation time.
func New() string {
	return ulid.Make().String()
}
