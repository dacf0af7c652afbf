// Package database handles connections to the registry database and schema inspection.
//
// It wraps GORM and selects the dialect from configuration: MySQL for deployed
// registries, SQLite for local runs and tests.
//
// # Schema Inspection
//
// GetTableColumns reads the column layout of a table so that the source provider
// can verify the registry schema before it starts serving reads.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    return err
//	}
//
//	columns, err := database.GetTableColumns(db, "groups")
package database
