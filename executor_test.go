package kvtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteInsertFindDelete(t *testing.T) {
	db := setup(t)

	res := db.Execute(Command{Kind: CmdInsert, Key: 1, Row: row(1)})
	require.NoError(t, res.Err)

	res = db.Execute(Command{Kind: CmdFind, Key: 1})
	require.NoError(t, res.Err)
	assert.Equal(t, row(1), res.Row)

	res = db.Execute(Command{Kind: CmdDelete, Key: 1})
	require.NoError(t, res.Err)

	res = db.Execute(Command{Kind: CmdFind, Key: 1})
	assert.ErrorIs(t, res.Err, ErrRecordNotFound)
}

func TestExecuteSelectAndRange(t *testing.T) {
	db := setup(t)
	insertRange(t, db, 1, 10)

	res := db.Execute(Command{Kind: CmdSelect})
	require.NoError(t, res.Err)
	assert.Len(t, res.Rows, 10)

	res = db.Execute(Command{Kind: CmdRange, Lo: 3, Hi: 5})
	require.NoError(t, res.Err)
	assert.Len(t, res.Rows, 3)
}

func TestExecuteValidateAndConstants(t *testing.T) {
	db := setup(t)
	insertRange(t, db, 1, 20)

	res := db.Execute(Command{Kind: CmdValidate})
	assert.NoError(t, res.Err)

	res = db.Execute(Command{Kind: CmdConstants})
	assert.Contains(t, res.Text, "ROW_SIZE")
}

func TestExecuteUnknownCommand(t *testing.T) {
	db := setup(t)
	res := db.Execute(Command{Kind: CommandKind(999)})
	assert.Error(t, res.Err)
}
