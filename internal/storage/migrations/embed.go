package migrations

import "embed"

// Schema files, one directory per backend. Files apply in name order.
var (
	//go:embed postgres/*.sql
	PostgresFS embed.FS

	//go:embed clickhouse/*.sql
	ClickhouseFS embed.FS

	//go:embed sqlite/*.sql
	SQLiteFS embed.FS
)
