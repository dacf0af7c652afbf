package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ColumnInfo describes one column of a registry table. Field and Type are
// lower case so layouts from both dialects compare the same way.
type ColumnInfo struct {
	Field    string
	Type     string
	Nullable bool
	Primary  bool
}

// columnReader reads the column layout of one table for a dialect.
type columnReader func(db *gorm.DB, table string) ([]ColumnInfo, error)

var columnReaders = map[string]columnReader{
	"sqlite": sqliteColumns,
	"mysql":  mysqlColumns,
}

// GetTableColumns returns the columns of table in declaration order. A table
// that does not exist yields no columns on SQLite and an error on MySQL.
func GetTableColumns(db *gorm.DB, table string) ([]ColumnInfo, error) {
	read, ok := columnReaders[db.Dialector.Name()]
	if !ok {
		return nil, fmt.Errorf("schema inspection is not supported for dialect %s", db.Dialector.Name())
	}
	columns, err := read(db, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", table, err)
	}
	return columns, nil
}

func sqliteColumns(db *gorm.DB, table string) ([]ColumnInfo, error) {
	var rows []struct {
		Name    string
		Type    string
		Notnull int
		Pk      int
	}
	if err := db.Raw("SELECT name, type, \"notnull\", pk FROM pragma_table_info(?)", table).Scan(&rows).Error; err != nil {
		return nil, err
	}
	columns := make([]ColumnInfo, 0, len(rows))
	for _, r := range rows {
		columns = append(columns, ColumnInfo{
			Field:    strings.ToLower(r.Name),
			Type:     strings.ToLower(r.Type),
			Nullable: r.Notnull == 0,
			Primary:  r.Pk > 0,
		})
	}
	return columns, nil
}

// mysqlColumns uses SHOW COLUMNS, which keeps display widths such as varchar(255).
func mysqlColumns(db *gorm.DB, table string) ([]ColumnInfo, error) {
	var rows []struct {
		Field string
		Type  string
		Null  string
		Key   string
	}
	if err := db.Raw("SHOW COLUMNS FROM `" + strings.ReplaceAll(table, "`", "``") + "`").Scan(&rows).Error; err != nil {
		return nil, err
	}
	columns := make([]ColumnInfo, 0, len(rows))
	for _, r := range rows {
		columns = append(columns, ColumnInfo{
			Field:    strings.ToLower(r.Field),
			Type:     strings.ToLower(r.Type),
			Nullable: r.Null == "YES",
			Primary:  r.Key == "PRI",
		})
	}
	return columns, nil
}
