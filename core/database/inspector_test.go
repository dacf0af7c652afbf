package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func TestGetTableColumns_SQLite(t *testing.T) {
	db, err := Connect(Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)

	err = db.Exec("CREATE TABLE stems (id INTEGER PRIMARY KEY, name TEXT NOT NULL, description TEXT)").Error
	require.NoError(t, err)

	columns, err := GetTableColumns(db, "stems")
	require.NoError(t, err)
	assert.Equal(t, []ColumnInfo{
		{Field: "id", Type: "integer", Nullable: true, Primary: true},
		{Field: "name", Type: "text", Nullable: false},
		{Field: "description", Type: "text", Nullable: true},
	}, columns)

	// A missing table has no columns on SQLite.
	columns, err = GetTableColumns(db, "non_existent")
	assert.NoError(t, err)
	assert.Empty(t, columns)
}

func TestGetTableColumns_MySQL(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
		AddRow("ID", "INT(10) UNSIGNED", "NO", "PRI", nil, "auto_increment").
		AddRow("name", "varchar(255)", "YES", "UNI", nil, "")
	mock.ExpectQuery("SHOW COLUMNS FROM `groups`").WillReturnRows(rows)
	mock.ExpectQuery("SHOW COLUMNS FROM `missing`").WillReturnError(assert.AnError)

	columns, err := GetTableColumns(db, "groups")
	require.NoError(t, err)
	assert.Equal(t, []ColumnInfo{
		{Field: "id", Type: "int(10) unsigned", Nullable: false, Primary: true},
		{Field: "name", Type: "varchar(255)", Nullable: true},
	}, columns)

	_, err = GetTableColumns(db, "missing")
	assert.ErrorContains(t, err, "missing")
	assert.NoError(t, mock.ExpectationsWereMet())
}
