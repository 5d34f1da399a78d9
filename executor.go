package kvtree

import "kvtree/internal/page"

// CommandKind names one of the operations accepted from the external
// REPL described in the storage specification. Parsing REPL text into a
// Command is the responsibility of the (out-of-scope) external
// dispatcher; Executor only translates an already-typed Command into
// engine calls.
type CommandKind int

const (
	CmdInsert CommandKind = iota
	CmdFind
	CmdUpdate
	CmdDelete
	CmdRange
	CmdSelect
	CmdBtree
	CmdValidate
	CmdConstants
	CmdDebug
	CmdExit
)

// Command is a single typed request to the executor.
type Command struct {
	Kind CommandKind

	Key    uint32
	Row    page.Row
	Lo, Hi uint32
}

// Result is the typed outcome of one executed Command. At most one of
// Row/Rows/Text is populated, selected by Kind; Err is non-nil on
// failure and every other field should be ignored.
type Result struct {
	Kind CommandKind

	Err error

	Row  page.Row
	Rows []KeyedRow
	Text string
}

// KeyedRow pairs a row with the key it's stored under, for multi-row
// results (select, range).
type KeyedRow struct {
	Key uint32
	Row page.Row
}

// Execute runs a single Command against db and returns its Result.
// Execute never panics on caller-supplied input: invalid commands
// produce a populated Result.Err instead.
func (db *DB) Execute(cmd Command) Result {
	switch cmd.Kind {
	case CmdInsert:
		err := db.Insert(cmd.Key, cmd.Row)
		return Result{Kind: cmd.Kind, Err: err}

	case CmdFind:
		row, err := db.Find(cmd.Key)
		return Result{Kind: cmd.Kind, Err: err, Row: row}

	case CmdUpdate:
		err := db.Update(cmd.Key, cmd.Row)
		return Result{Kind: cmd.Kind, Err: err}

	case CmdDelete:
		err := db.Delete(cmd.Key)
		return Result{Kind: cmd.Kind, Err: err}

	case CmdSelect:
		rows, err := db.collect(db.Select())
		return Result{Kind: cmd.Kind, Err: err, Rows: rows}

	case CmdRange:
		rows, err := db.collect(db.RangeScan(cmd.Lo, cmd.Hi))
		return Result{Kind: cmd.Kind, Err: err, Rows: rows}

	case CmdBtree:
		text, err := db.Btree()
		return Result{Kind: cmd.Kind, Err: err, Text: text}

	case CmdValidate:
		err := db.Validate()
		return Result{Kind: cmd.Kind, Err: err}

	case CmdConstants:
		return Result{Kind: cmd.Kind, Text: Constants()}

	case CmdDebug:
		text, err := db.Debug()
		return Result{Kind: cmd.Kind, Err: err, Text: text}

	case CmdExit:
		return Result{Kind: cmd.Kind, Err: db.Close()}

	default:
		return Result{Kind: cmd.Kind, Err: ErrValidation}
	}
}

// collect drains a Cursor into a slice of KeyedRow, for commands whose
// result is the whole scan rather than a single row.
func (db *DB) collect(c *Cursor, openErr error) ([]KeyedRow, error) {
	if openErr != nil {
		return nil, openErr
	}

	var out []KeyedRow
	for c.Valid() {
		key, row, err := c.Row()
		if err != nil {
			return out, err
		}
		out = append(out, KeyedRow{Key: key, Row: row})
		if err := c.Next(); err != nil {
			return out, err
		}
	}
	return out, nil
}
