package dispatcher

import (
	jerrors "github.com/juju/errors"

	"github.com/zhukovaskychina/xmysql-protocol/server"
	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/server/protocol"
	"github.com/zhukovaskychina/xmysql-protocol/util"
)

// WriteResultSet emits a (possibly chained) result set: column count,
// definitions, the optional EOF, rows in text or binary form, and the
// OK/EOF terminator. A result without columns degenerates to a plain OK.
func (h *CommandHandler) WriteResultSet(w PacketWriter, rs *server.ResultSet, binary bool) error {
	if rs == nil {
		rs = &server.ResultSet{}
	}
	caps := h.sess.Capabilities
	deprecateEOF := caps&common.CLIENT_DEPRECATE_EOF != 0

	for rs != nil {
		status := h.sess.StatusFlags
		if rs.More != nil {
			status |= common.SERVER_MORE_RESULTS_EXISTS
		}

		if len(rs.Columns) == 0 {
			ok := &protocol.OK{
				AffectedRows: rs.AffectedRows,
				InsertID:     rs.LastInsertID,
				StatusFlags:  status,
				Warnings:     rs.Warnings,
				Info:         rs.Info,
			}
			if err := w.WritePacket(ok.Encode(caps)); err != nil {
				return jerrors.Trace(err)
			}
			rs = rs.More
			continue
		}

		colCount := util.WriteLength(nil, int64(len(rs.Columns)))
		if err := w.WritePacket(colCount); err != nil {
			return jerrors.Trace(err)
		}
		for _, fp := range rs.Columns {
			if err := w.WritePacket(fp.Encode()); err != nil {
				return jerrors.Trace(err)
			}
		}
		if !deprecateEOF {
			if err := h.writeEOF(w, status); err != nil {
				return err
			}
		}

		for _, row := range rs.Rows {
			var payload []byte
			var err error
			if binary {
				payload, err = protocol.EncodeBinaryRow(rs.Columns, row)
			} else {
				payload, err = protocol.EncodeTextRow(row, h.sess.CharsetIndex)
			}
			if err != nil {
				return jerrors.Trace(err)
			}
			if err := w.WritePacket(payload); err != nil {
				return jerrors.Trace(err)
			}
		}

		if deprecateEOF {
			ok := &protocol.OK{
				Header:      0xFE,
				StatusFlags: status,
				Warnings:    rs.Warnings,
			}
			if err := w.WritePacket(ok.Encode(caps)); err != nil {
				return jerrors.Trace(err)
			}
		} else {
			eof := &protocol.EOFPacket{WarningCount: rs.Warnings, Status: status}
			if err := w.WritePacket(eof.Encode(caps)); err != nil {
				return jerrors.Trace(err)
			}
		}
		rs = rs.More
	}
	return nil
}

func (h *CommandHandler) writeOK(w PacketWriter, affectedRows, insertID uint64, info string) error {
	ok := &protocol.OK{
		AffectedRows: affectedRows,
		InsertID:     insertID,
		StatusFlags:  h.sess.StatusFlags,
		Info:         info,
	}
	return jerrors.Trace(w.WritePacket(ok.Encode(h.sess.Capabilities)))
}

func (h *CommandHandler) writeEOF(w PacketWriter, status uint16) error {
	eof := &protocol.EOFPacket{Status: status}
	return jerrors.Trace(w.WritePacket(eof.Encode(h.sess.Capabilities)))
}

// writeTerminator ends a defs-only response (COM_FIELD_LIST) with the
// shape the capabilities call for.
func (h *CommandHandler) writeTerminator(w PacketWriter, status uint16) error {
	if h.sess.Capabilities&common.CLIENT_DEPRECATE_EOF != 0 {
		ok := &protocol.OK{Header: 0xFE, StatusFlags: status}
		return jerrors.Trace(w.WritePacket(ok.Encode(h.sess.Capabilities)))
	}
	return h.writeEOF(w, status)
}

func (h *CommandHandler) writeError(w PacketWriter, se *common.SQLError) error {
	ep := protocol.NewErrorPacket(se)
	return jerrors.Trace(w.WritePacket(ep.Encode(h.sess.Capabilities)))
}

// writeBackendError maps a backend error onto the wire: structured errors
// travel verbatim, anything else becomes 1105.
func (h *CommandHandler) writeBackendError(w PacketWriter, err error) error {
	if se, ok := err.(*common.SQLError); ok {
		return h.writeError(w, se)
	}
	return h.writeError(w, common.NewSQLError(common.ER_UNKNOWN_ERROR,
		common.SSUnknownSQLState, "%v", err))
}
