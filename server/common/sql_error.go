/*
 * This code was derived from https://github.com/youtube/vitess.
 *
 * go-mysqlstack
 * xelabs.org
 *
 * Copyright (c) XeLabs
 * GPL License
 *
 */

package common

import (
	"fmt"
)

// SQLError is the error structure returned from calling a db library function
type SQLError struct {
	Num     uint16
	State   string
	Message string
}

// NewSQLError creates a new SQLError.
func NewSQLError(number uint16, sqlState string, format string, args ...interface{}) *SQLError {
	if sqlState == "" {
		sqlState = SSUnknownSQLState
	}
	return &SQLError{
		Num:     number,
		State:   sqlState,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewSQLError1 creates a new SQLError from the catalog, falling back to the
// unknown-error template when the code is not listed.
func NewSQLError1(number uint16, args ...interface{}) *SQLError {
	tpl, ok := SQLErrors[number]
	if !ok {
		return NewSQLError(ER_UNKNOWN_ERROR, SSUnknownSQLState, "unknown error: %v", args)
	}
	return NewSQLError(number, tpl.State, tpl.Message, args...)
}

// Error implements the error interface.
func (se *SQLError) Error() string {
	return fmt.Sprintf("%s (errno %v) (sqlstate %v)", se.Message, se.Num, se.State)
}

// SQLErrors is the templates of the known error responses.
var SQLErrors = map[uint16]*SQLError{
	ER_CON_COUNT_ERROR:              {Num: ER_CON_COUNT_ERROR, State: "08004", Message: "Too many connections"},
	ER_ACCESS_DENIED_ERROR:          {Num: ER_ACCESS_DENIED_ERROR, State: SSAccessDenied, Message: "Access denied for user '%-.48s'@'%-.64s' (using password: %s)"},
	ER_NO_DB_ERROR:                  {Num: ER_NO_DB_ERROR, State: "3D000", Message: "No database selected"},
	ER_UNKNOWN_COM_ERROR:            {Num: ER_UNKNOWN_COM_ERROR, State: "08S01", Message: "Unknown command"},
	ER_BAD_DB_ERROR:                 {Num: ER_BAD_DB_ERROR, State: SSBadDB, Message: "Unknown database '%-.192s'"},
	ER_UNKNOWN_ERROR:                {Num: ER_UNKNOWN_ERROR, State: SSUnknownSQLState, Message: "%v"},
	ER_HOST_NOT_PRIVILEGED:          {Num: ER_HOST_NOT_PRIVILEGED, State: SSUnknownSQLState, Message: "Host '%-.64s' is not allowed to connect to this MySQL server"},
	ER_NO_SUCH_TABLE:                {Num: ER_NO_SUCH_TABLE, State: "42S02", Message: "Table '%s' doesn't exist"},
	ER_SYNTAX_ERROR:                 {Num: ER_SYNTAX_ERROR, State: SSBadDB, Message: "You have an error in your SQL syntax; %s"},
	ER_ABORTING_CONNECTION:          {Num: ER_ABORTING_CONNECTION, State: "08S01", Message: "Aborted connection %d to db: '%-.192s' user: '%-.48s' (%-.64s)"},
	ER_SPECIFIC_ACCESS_DENIED_ERROR: {Num: ER_SPECIFIC_ACCESS_DENIED_ERROR, State: SSBadDB, Message: "Access denied; you need (at least one of) the %-.128s privilege(s) for this operation"},
	ER_UNKNOWN_STMT_HANDLER:         {Num: ER_UNKNOWN_STMT_HANDLER, State: SSUnknownSQLState, Message: "Unknown prepared statement handler (%v) given to %s"},
	ER_FEATURE_DISABLED:             {Num: ER_FEATURE_DISABLED, State: SSBadDB, Message: "The '%s' feature is disabled; %s"},
	ER_OPTION_PREVENTS_STATEMENT:    {Num: ER_OPTION_PREVENTS_STATEMENT, State: SSBadDB, Message: "The MySQL server is running with the %s option so it cannot execute this statement"},
	ER_NOT_SUPPORTED_AUTH_MODE:      {Num: ER_NOT_SUPPORTED_AUTH_MODE, State: "08004", Message: "Client does not support authentication protocol requested by server; consider upgrading MySQL client"},
	ER_MALFORMED_PACKET:             {Num: ER_MALFORMED_PACKET, State: SSUnknownSQLState, Message: "Malformed communication packet."},
	CR_SERVER_LOST:                  {Num: CR_SERVER_LOST, State: SSUnknownSQLState, Message: "%v"},
}
