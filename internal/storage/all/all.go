// Package all registers every storage backend. Blank-import it from binaries.
package all

import (
	_ "crmextract/internal/storage/memory"
	_ "crmextract/internal/storage/mssql"
	_ "crmextract/internal/storage/mysql"
	_ "crmextract/internal/storage/postgres"
	_ "crmextract/internal/storage/sqlite"
)
