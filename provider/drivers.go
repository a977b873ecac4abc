package provider

// Drivers for every supported dialect register with database/sql here.
import (
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"
)
