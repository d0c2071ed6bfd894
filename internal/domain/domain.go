package domain

import (
	"fmt"
	"strconv"
)

type AccountID string

func (aid AccountID) String() string {
	return string(aid)
}

type ChannelName string

func (cn ChannelName) String() string {
	return string(cn)
}

// OffsetToken is the ingestion progress marker tracked per channel. On the
// wire it is a decimal string counting total rows committed to the channel;
// the empty string means the channel has never been written to.
type OffsetToken struct {
	rows  uint64
	empty bool
}

func EmptyOffset() OffsetToken {
	return OffsetToken{empty: true}
}

func OffsetFromRowCount(rows uint64) OffsetToken {
	return OffsetToken{rows: rows}
}

// ParseOffsetToken converts the server supplied token into an OffsetToken.
// The service echoes back whatever token the client last committed, so
// anything other than a decimal string (or empty) means the channel was
// written by an incompatible client.
func ParseOffsetToken(s string) (OffsetToken, error) {
	if s == "" {
		return EmptyOffset(), nil
	}
	rows, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return OffsetToken{}, fmt.Errorf("unparseable offset token %q: %w", s, err)
	}
	return OffsetFromRowCount(rows), nil
}

func (o OffsetToken) IsEmpty() bool {
	return o.empty
}

func (o OffsetToken) Rows() uint64 {
	return o.rows
}

// Advance returns the offset after committing another rowCount rows.
func (o OffsetToken) Advance(rowCount int) OffsetToken {
	return OffsetToken{rows: o.rows + uint64(rowCount)}
}

// After reports whether o is strictly beyond other. An empty offset is
// before any non-empty offset.
func (o OffsetToken) After(other OffsetToken) bool {
	if o.empty {
		return false
	}
	if other.empty {
		return true
	}
	return o.rows > other.rows
}

// String renders the wire form: a decimal row count, or "" when empty.
func (o OffsetToken) String() string {
	if o.empty {
		return ""
	}
	return strconv.FormatUint(o.rows, 10)
}
