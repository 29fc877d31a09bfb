// Package all registers every loader backend with the storage factory.
// Commands blank-import it so the run config alone decides which backend
// a run uses.
package all

import (
	_ "filesift/internal/storage/mssql"
	_ "filesift/internal/storage/postgres"
	_ "filesift/internal/storage/sqlite"
)
