// Package all registers every storage backend with the storage factory.
// Config chooses which one to use, but the binaries build in support for all.
package all

import (
	_ "dmd/internal/storage/duckdb"
	_ "dmd/internal/storage/mssql"
	_ "dmd/internal/storage/postgres"
	_ "dmd/internal/storage/sqlite"
)
