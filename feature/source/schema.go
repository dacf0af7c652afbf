package source

import (
	"fmt"
	"reflect"
	"strings"

	"provisioner/core/database"

	"gorm.io/gorm"
)

// SchemaReport is the result of comparing the registry tables with the models.
type SchemaReport struct {
	Matched bool                   `json:"matched"`
	Tables  map[string]TableReport `json:"tables"`
	Errors  []string               `json:"errors,omitempty"`
}

// TableReport lists the problems found in one table.
type TableReport struct {
	MissingColumns []string `json:"missing_columns"`
	TypeMismatches []string `json:"type_mismatches"`
	Status         string   `json:"status"` // "ok", "error", "missing"
}

// VerifySchema checks that every registry table has the columns declared by
// its model. Columns whose gorm tag names a type must also match that type.
func VerifySchema(db *gorm.DB) (*SchemaReport, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	report := &SchemaReport{Matched: true, Tables: make(map[string]TableReport)}
	for _, model := range Models() {
		tabler, ok := model.(interface{ TableName() string })
		if !ok {
			return nil, fmt.Errorf("model %T does not implement TableName", model)
		}
		table := tabler.TableName()

		actual, err := database.GetTableColumns(db, table)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("failed to inspect table %s: %v", table, err))
			report.Matched = false
			continue
		}
		tbl := compareTable(reflect.TypeOf(model).Elem(), actual)
		if tbl.Status != "ok" {
			report.Matched = false
		}
		report.Tables[table] = tbl
	}
	return report, nil
}

func compareTable(model reflect.Type, actual []database.ColumnInfo) TableReport {
	tbl := TableReport{MissingColumns: []string{}, TypeMismatches: []string{}, Status: "ok"}

	if len(actual) == 0 {
		tbl.Status = "missing"
	}

	byName := make(map[string]database.ColumnInfo, len(actual))
	for _, c := range actual {
		byName[c.Field] = c
	}

	for i := 0; i < model.NumField(); i++ {
		tag := model.Field(i).Tag.Get("gorm")
		col := gormTagValue(tag, "column")
		if col == "" {
			continue
		}
		have, ok := byName[col]
		if !ok {
			tbl.MissingColumns = append(tbl.MissingColumns, col)
			if tbl.Status == "ok" {
				tbl.Status = "error"
			}
			continue
		}
		want := strings.ToLower(gormTagValue(tag, "type"))
		if want != "" && !strings.Contains(have.Type, want) {
			tbl.TypeMismatches = append(tbl.TypeMismatches, fmt.Sprintf("%s: expected %s, got %s", col, want, have.Type))
			tbl.Status = "error"
		}
	}
	return tbl
}

func gormTagValue(tag, key string) string {
	for _, part := range strings.Split(tag, ";") {
		if v, ok := strings.CutPrefix(part, key+":"); ok {
			return v
		}
	}
	return ""
}
