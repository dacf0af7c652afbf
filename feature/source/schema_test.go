package source

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func TestVerifySchema_SQLite(t *testing.T) {
	p := setupRegistry(t)

	report, err := VerifySchema(p.db)
	require.NoError(t, err)
	assert.True(t, report.Matched, "%+v", report)
	assert.Len(t, report.Tables, 5)
	assert.Equal(t, "ok", report.Tables["change_log"].Status)
}

func TestVerifySchema_MySQL(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)

	columns := []string{"Field", "Type", "Null", "Key", "Default", "Extra"}

	stems := sqlmock.NewRows(columns).
		AddRow("id", "int(10) unsigned", "NO", "PRI", nil, "auto_increment").
		AddRow("name", "int(11)", "NO", "UNI", nil, "").
		AddRow("display_name", "varchar(255)", "YES", "", nil, "").
		AddRow("created_at", "datetime(3)", "YES", "", nil, "").
		AddRow("updated_at", "datetime(3)", "YES", "", nil, "")
	mock.ExpectQuery("SHOW COLUMNS FROM `stems`").WillReturnRows(stems)
	for _, table := range []string{"groups", "memberships", "group_attributes", "change_log"} {
		mock.ExpectQuery("SHOW COLUMNS FROM `" + table + "`").WillReturnRows(sqlmock.NewRows(columns))
	}

	report, err := VerifySchema(db)
	require.NoError(t, err)
	assert.False(t, report.Matched)

	tbl := report.Tables["stems"]
	assert.Equal(t, "error", tbl.Status)
	assert.Equal(t, []string{"description"}, tbl.MissingColumns)
	assert.Equal(t, []string{"name: expected varchar(255), got int(11)"}, tbl.TypeMismatches)
	assert.Contains(t, report.Tables["change_log"].MissingColumns, "sequence")
	assert.Equal(t, "missing", report.Tables["change_log"].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifySchema_NilDB(t *testing.T) {
	report, err := VerifySchema(nil)
	assert.Error(t, err)
	assert.Nil(t, report)
}
