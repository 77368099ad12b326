package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSQLErrorCatalog(t *testing.T) {
	err := NewSQLError1(ER_UNKNOWN_COM_ERROR)
	assert.Equal(t, uint16(1047), err.Num)
	assert.Equal(t, "08S01", err.State)
	assert.Contains(t, err.Message, "Unknown command")

	err = NewSQLError1(ER_UNKNOWN_STMT_HANDLER, 42, "mysqld_stmt_execute")
	assert.Equal(t, uint16(1243), err.Num)
	assert.Contains(t, err.Message, "42")

	err = NewSQLError(ER_BAD_DB_ERROR, SSBadDB, "Unknown database '%s'", "nope")
	assert.Contains(t, err.Error(), "errno 1049")
}

func TestSQLErrorUnknownCode(t *testing.T) {
	err := NewSQLError1(9999, "boom")
	assert.Equal(t, ER_UNKNOWN_ERROR, err.Num)
	assert.Equal(t, SSUnknownSQLState, err.State)
}
