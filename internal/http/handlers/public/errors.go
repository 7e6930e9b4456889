package public

import "errors"

var errDatabaseUnavailable = errors.New("database not initialized")
