package db

import "github.com/lueurxax/channel-digest/internal/core/ports"

var _ ports.Store = (*DB)(nil)
