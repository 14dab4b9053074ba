package engine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Konsultn-Engineering/microrm/command"
	"github.com/Konsultn-Engineering/microrm/metrics"
	"github.com/Konsultn-Engineering/microrm/schema"
)

// =========================================================================
// Test Data Structures
// =========================================================================

type Item struct {
	Id   int    `db:"key;generated"`
	Name string `db:"required;length:50"`
	Qty  *int
}

type Note struct {
	Code   string `db:"key;required;length:20"`
	Body   string
	Rating int
}

type Loose struct {
	Name string
}

const (
	itemInsert      = "INSERT INTO [Item] ([Name], [Qty]) VALUES (@Name, @Qty); SELECT SCOPE_IDENTITY()"
	itemSelectAll   = "SELECT [Id], [Name], [Qty] FROM [Item]"
	itemSelectByKey = "SELECT [Id], [Name], [Qty] FROM [Item] WHERE [Id] = @Id"
	itemUpdate      = "UPDATE [Item] SET [Name] = @Name, [Qty] = @Qty WHERE [Id] = @Id"
	itemDelete      = "DELETE FROM [Item] WHERE [Id] = @Id"
	itemCount       = "SELECT COUNT(*) FROM [Item]"
	itemCreate      = "CREATE TABLE [Item] ([Id] bigint IDENTITY(1,1), [Name] nvarchar(50) NOT NULL, " +
		"[Qty] bigint NULL, CONSTRAINT [PK_Item] PRIMARY KEY ([Id]))"
	itemDrop    = "DROP TABLE [Item]"
	tableExists = "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @Schema AND TABLE_NAME = @TableName"

	noteInsert      = "INSERT INTO [Note] ([Code], [Body], [Rating]) VALUES (@Code, @Body, @Rating)"
	noteSelectByKey = "SELECT [Code], [Body], [Rating] FROM [Note] WHERE [Code] = @Code"
	noteUpdate      = "UPDATE [Note] SET [Body] = @Body, [Rating] = @Rating WHERE [Code] = @Code"
	noteCount       = "SELECT COUNT(*) FROM [Note]"
)

var itemColumns = []string{"Id", "Name", "Qty"}

func intPtr(n int) *int { return &n }

func newMockEngine(t *testing.T, opts ...Option) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, opts...), mock
}

func noteArgs(n Note) []driver.Value {
	return []driver.Value{sql.Named("Code", n.Code), sql.Named("Body", n.Body), sql.Named("Rating", n.Rating)}
}

// =========================================================================
// Insert Tests
// =========================================================================

func TestInsertAssignsGeneratedKey(t *testing.T) {
	e, mock := newMockEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(itemInsert).
		WithArgs(sql.Named("Name", "A"), sql.Named("Qty", nil)).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow([]byte("7")))
	mock.ExpectCommit()

	item := &Item{Name: "A"}
	n, err := e.Insert(context.Background(), item, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 7, item.Id, "identity is converted to the key's native type")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWithReadback(t *testing.T) {
	e, mock := newMockEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(itemInsert).
		WithArgs(sql.Named("Name", "A"), sql.Named("Qty", 2)).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(9)))
	mock.ExpectQuery(itemSelectByKey).
		WithArgs(sql.Named("Id", 9)).
		WillReturnRows(sqlmock.NewRows(itemColumns).AddRow(int64(9), "A (trimmed)", int64(3)))
	mock.ExpectCommit()

	item := &Item{Name: "A", Qty: intPtr(2)}
	n, err := e.Insert(context.Background(), item, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, Item{Id: 9, Name: "A (trimmed)", Qty: intPtr(3)}, *item)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReadbackWithoutRowIsNoop(t *testing.T) {
	e, mock := newMockEngine(t)

	mock.ExpectBegin()
	mock.ExpectQuery(itemInsert).
		WithArgs(sql.Named("Name", "A"), sql.Named("Qty", nil)).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(4)))
	mock.ExpectQuery(itemSelectByKey).
		WithArgs(sql.Named("Id", 4)).
		WillReturnRows(sqlmock.NewRows(itemColumns))
	mock.ExpectCommit()

	item := &Item{Name: "A"}
	n, err := e.Insert(context.Background(), item, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, Item{Id: 4, Name: "A"}, *item)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWithoutGeneratedKeyExecutes(t *testing.T) {
	e, mock := newMockEngine(t)
	note := Note{Code: "n-1", Body: "hello", Rating: 5}

	mock.ExpectBegin()
	mock.ExpectExec(noteInsert).WithArgs(noteArgs(note)...).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := e.Insert(context.Background(), &note, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDriverErrorRollsBack(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e, mock := newMockEngine(t, WithLogger(zap.New(core)))
	driverErr := errors.New("Cannot insert the value NULL into column 'Name'")

	mock.ExpectBegin()
	mock.ExpectQuery(itemInsert).WillReturnError(driverErr)
	mock.ExpectRollback()

	item := &Item{Name: "A"}
	n, err := e.Insert(context.Background(), item, false)
	assert.ErrorIs(t, err, driverErr)
	assert.Equal(t, 0, n)
	assert.Zero(t, item.Id)
	assert.Equal(t, 1, logs.FilterMessage("transaction rolled back").Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReadbackFailureRestoresRecord(t *testing.T) {
	e, mock := newMockEngine(t)
	readErr := errors.New("connection reset by peer")

	mock.ExpectBegin()
	mock.ExpectQuery(itemInsert).
		WithArgs(sql.Named("Name", "A"), sql.Named("Qty", nil)).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(42)))
	mock.ExpectQuery(itemSelectByKey).WithArgs(sql.Named("Id", 42)).WillReturnError(readErr)
	mock.ExpectRollback()

	item := &Item{Name: "A"}
	n, err := e.Insert(context.Background(), item, true)
	assert.ErrorIs(t, err, readErr)
	assert.Equal(t, 0, n)
	assert.Equal(t, Item{Name: "A"}, *item, "no key survives a rolled back insert")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBeginFailure(t *testing.T) {
	e, mock := newMockEngine(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

	_, err := e.Insert(context.Background(), &Item{Name: "A"}, false)
	assert.ErrorContains(t, err, "failed to begin transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =========================================================================
// Batch Tests
// =========================================================================

func TestInsertManyReusesPreparedStatement(t *testing.T) {
	e, mock := newMockEngine(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(itemInsert)
	prep.ExpectQuery().WithArgs(sql.Named("Name", "a"), sql.Named("Qty", nil)).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(1)))
	prep.ExpectQuery().WithArgs(sql.Named("Name", "b"), sql.Named("Qty", 2)).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(2)))
	mock.ExpectCommit()

	items := []*Item{{Name: "a"}, {Name: "b", Qty: intPtr(2)}}
	n, err := e.InsertMany(context.Background(), []any{items[0], items[1]}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, items[0].Id)
	assert.Equal(t, 2, items[1].Id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertManyFailureRestoresAssignedKeys(t *testing.T) {
	e, mock := newMockEngine(t)
	violation := errors.New("Cannot insert duplicate key row")

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(itemInsert)
	prep.ExpectQuery().WithArgs(sql.Named("Name", "a"), sql.Named("Qty", nil)).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(1)))
	prep.ExpectQuery().WithArgs(sql.Named("Name", "b"), sql.Named("Qty", nil)).
		WillReturnError(violation)
	mock.ExpectRollback()

	items := []*Item{{Name: "a"}, {Name: "b"}}
	n, err := e.InsertMany(context.Background(), []any{items[0], items[1]}, false)
	assert.ErrorIs(t, err, violation)
	assert.Equal(t, 0, n)
	assert.Zero(t, items[0].Id)
	assert.Zero(t, items[1].Id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertManyFailureRollsBackWholeBatch(t *testing.T) {
	e, mock := newMockEngine(t)
	notes := []Note{
		{Code: "batch-1", Body: "first"},
		{Code: "batch-1", Body: "duplicate"},
		{Code: "batch-3", Body: "never sent"},
	}
	violation := errors.New("Violation of PRIMARY KEY constraint 'PK_Note'")

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(noteInsert)
	prep.ExpectExec().WithArgs(noteArgs(notes[0])...).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(noteArgs(notes[1])...).WillReturnError(violation)
	mock.ExpectRollback()

	n, err := e.InsertMany(context.Background(), []any{&notes[0], &notes[1], &notes[2]}, false)
	assert.ErrorIs(t, err, violation)
	assert.ErrorContains(t, err, "record 1")
	assert.Equal(t, 0, n, "a failed batch reports no processed records")

	mock.ExpectQuery(noteCount).WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(0)))
	count, err := e.CountAll(context.Background(), schema.TypeOf[Note]())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertManyWithReadback(t *testing.T) {
	e, mock := newMockEngine(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(itemInsert)
	prep.ExpectQuery().WithArgs(sql.Named("Name", "a"), sql.Named("Qty", nil)).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(11)))
	mock.ExpectQuery(itemSelectByKey).WithArgs(sql.Named("Id", 11)).
		WillReturnRows(sqlmock.NewRows(itemColumns).AddRow(int64(11), "a", int64(1)))
	mock.ExpectCommit()

	item := &Item{Name: "a"}
	n, err := e.InsertMany(context.Background(), []any{item}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, Item{Id: 11, Name: "a", Qty: intPtr(1)}, *item)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateManySumsAffectedRows(t *testing.T) {
	e, mock := newMockEngine(t)
	notes := []*Note{
		{Code: "a", Body: "x", Rating: 1},
		{Code: "missing", Body: "y", Rating: 2},
		{Code: "c", Body: "z", Rating: 3},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(noteUpdate)
	for i, n := range notes {
		affected := int64(1)
		if i == 1 {
			affected = 0
		}
		prep.ExpectExec().
			WithArgs(sql.Named("Body", n.Body), sql.Named("Rating", n.Rating), sql.Named("Code", n.Code)).
			WillReturnResult(sqlmock.NewResult(0, affected))
	}
	mock.ExpectCommit()

	n, err := e.UpdateMany(context.Background(), []any{notes[0], notes[1], notes[2]})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Less(t, n, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateManyFailureReportsZero(t *testing.T) {
	e, mock := newMockEngine(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(noteUpdate)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnError(errors.New("deadlock victim"))
	mock.ExpectRollback()

	n, err := e.UpdateMany(context.Background(), []any{&Note{Code: "a"}, &Note{Code: "b"}})
	assert.ErrorContains(t, err, "deadlock victim")
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmptyBatchesDoNothing(t *testing.T) {
	e, mock := newMockEngine(t)

	n, err := e.InsertMany(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = e.UpdateMany(context.Background(), []any{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =========================================================================
// Update / Delete Tests
// =========================================================================

// Single-row writes report 1 on success regardless of the driver's count.
// These tests pin that convention.
func TestSingleRowWritesReportOne(t *testing.T) {
	tests := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock)
		run    func(e *Engine) (int, error)
	}{
		{
			"update matching no row",
			func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(itemUpdate).
					WithArgs(sql.Named("Name", "A"), sql.Named("Qty", nil), sql.Named("Id", 404)).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			func(e *Engine) (int, error) { return e.Update(context.Background(), &Item{Id: 404, Name: "A"}) },
		},
		{
			"delete matching no row",
			func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(itemDelete).WithArgs(sql.Named("Id", 404)).WillReturnResult(sqlmock.NewResult(0, 0))
			},
			func(e *Engine) (int, error) { return e.Delete(context.Background(), &Item{Id: 404}) },
		},
		{
			"insert affecting two rows through a trigger",
			func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(noteInsert).WillReturnResult(sqlmock.NewResult(0, 2))
			},
			func(e *Engine) (int, error) { return e.Insert(context.Background(), &Note{Code: "t"}, false) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, mock := newMockEngine(t)
			mock.ExpectBegin()
			tt.expect(mock)
			mock.ExpectCommit()

			n, err := tt.run(e)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDeleteDriverErrorRollsBack(t *testing.T) {
	e, mock := newMockEngine(t)
	fkErr := errors.New("The DELETE statement conflicted with the REFERENCE constraint")

	mock.ExpectBegin()
	mock.ExpectExec(itemDelete).WithArgs(sql.Named("Id", 1)).WillReturnError(fkErr)
	mock.ExpectRollback()

	n, err := e.Delete(context.Background(), &Item{Id: 1})
	assert.ErrorIs(t, err, fkErr)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =========================================================================
// Argument Errors
// =========================================================================

func TestArgumentErrorsBeforeIO(t *testing.T) {
	e, mock := newMockEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"nil record", func() error { _, err := e.Insert(ctx, nil, false); return err }, ErrNilRecord},
		{"typed nil record", func() error { _, err := e.Update(ctx, (*Item)(nil)); return err }, ErrNilRecord},
		{"struct value", func() error { _, err := e.Delete(ctx, Item{}); return err }, ErrNotPointer},
		{"nil in batch", func() error { _, err := e.InsertMany(ctx, []any{&Item{}, nil}, false); return err }, ErrNilRecord},
		{"mixed batch", func() error { _, err := e.UpdateMany(ctx, []any{&Item{}, &Note{}}); return err }, ErrMixedTypes},
		{"no key column", func() error { _, err := e.Insert(ctx, &Loose{}, false); return err }, schema.ErrNoKeyColumn},
		{"nil command", func() error { var out []Item; return e.SelectMany(ctx, nil, &out) }, ErrNilCommand},
		{"empty query", func() error { var out []Item; return e.Retrieve(ctx, &out, "") }, ErrEmptyQuery},
		{"non-slice destination", func() error { var out Item; return e.SelectAll(ctx, &out) }, ErrNotSlice},
		{"slice value destination", func() error { var out []Item; return e.SelectAll(ctx, out) }, ErrNotSlice},
		{"slice of ints", func() error { var out []int; return e.SelectAll(ctx, &out) }, ErrNotSlice},
		{"count non-struct", func() error { _, err := e.CountAll(ctx, schema.TypeOf[int]()); return err }, schema.ErrNotStruct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.want)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaErrorIsTyped(t *testing.T) {
	e, _ := newMockEngine(t)

	_, err := e.Insert(context.Background(), &Loose{Name: "x"}, false)
	var se *schema.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, schema.TypeOf[Loose](), se.Type)
}

// =========================================================================
// Select Tests
// =========================================================================

func TestSelectAll(t *testing.T) {
	e, mock := newMockEngine(t)

	mock.ExpectQuery(itemSelectAll).WillReturnRows(sqlmock.NewRows(itemColumns).
		AddRow(int64(1), "A", nil).
		AddRow(int64(2), "B", int64(5)))

	var items []Item
	require.NoError(t, e.SelectAll(context.Background(), &items))
	assert.Equal(t, []Item{{Id: 1, Name: "A"}, {Id: 2, Name: "B", Qty: intPtr(5)}}, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectAllIntoPointerSlice(t *testing.T) {
	e, mock := newMockEngine(t)

	mock.ExpectQuery(itemSelectAll).WillReturnRows(sqlmock.NewRows(itemColumns).AddRow(int64(3), "C", nil))

	items := []*Item{{Id: 99}}
	require.NoError(t, e.SelectAll(context.Background(), &items))
	require.Len(t, items, 1, "previous contents are replaced")
	assert.Equal(t, &Item{Id: 3, Name: "C"}, items[0])
}

func TestSelectAllNullsBecomeZeroValues(t *testing.T) {
	e, mock := newMockEngine(t)

	mock.ExpectQuery(itemSelectAll).WillReturnRows(sqlmock.NewRows(itemColumns).AddRow(int64(1), nil, nil))

	var items []Item
	require.NoError(t, e.SelectAll(context.Background(), &items))
	assert.Equal(t, []Item{{Id: 1}}, items)
}

func TestSelectAllConversionErrorSkipsOnlyThatRow(t *testing.T) {
	e, mock := newMockEngine(t)

	mock.ExpectQuery(itemSelectAll).WillReturnRows(sqlmock.NewRows(itemColumns).
		AddRow(int64(1), "A", nil).
		AddRow("not a number", "B", nil).
		AddRow(int64(3), "C", nil))

	var items []Item
	err := e.SelectAll(context.Background(), &items)

	var ce *schema.ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Id", ce.Column)
	assert.ErrorContains(t, err, "row 1")
	assert.Equal(t, []Item{{Id: 1, Name: "A"}, {Id: 3, Name: "C"}}, items)
}

func TestSelectAllDriverError(t *testing.T) {
	e, mock := newMockEngine(t)
	mock.ExpectQuery(itemSelectAll).WillReturnError(sql.ErrConnDone)

	var items []Item
	assert.ErrorIs(t, e.SelectAll(context.Background(), &items), sql.ErrConnDone)
}

func TestSelectSingle(t *testing.T) {
	e, mock := newMockEngine(t)

	mock.ExpectQuery(itemSelectByKey).WithArgs(sql.Named("Id", 5)).
		WillReturnRows(sqlmock.NewRows(itemColumns).AddRow(int64(5), "E", int64(1)))
	mock.ExpectQuery(itemSelectByKey).WithArgs(sql.Named("Id", 6)).
		WillReturnRows(sqlmock.NewRows(itemColumns))

	item := &Item{Id: 5}
	found, err := e.SelectSingle(context.Background(), item)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, Item{Id: 5, Name: "E", Qty: intPtr(1)}, *item)

	missing := &Item{Id: 6, Name: "keep"}
	found, err = e.SelectSingle(context.Background(), missing)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "keep", missing.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectManyToleratesPartialResults(t *testing.T) {
	e, mock := newMockEngine(t)

	cmd := command.New("SELECT [Name] AS name, 42 AS Extra FROM [Item] WHERE [Name] LIKE @Pattern")
	cmd.SetParameter("@Pattern", "A%")

	mock.ExpectQuery(cmd.Text).WithArgs(sql.Named("Pattern", "A%")).
		WillReturnRows(sqlmock.NewRows([]string{"name", "Extra"}).AddRow("Ann", int64(42)))

	var items []Item
	require.NoError(t, e.SelectMany(context.Background(), cmd, &items))
	assert.Equal(t, []Item{{Name: "Ann"}}, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetrieve(t *testing.T) {
	e, mock := newMockEngine(t)

	query := "SELECT [Id], [Name] FROM [Item] WHERE [Qty] > @Min"
	mock.ExpectQuery(query).WithArgs(sql.Named("Min", 3)).
		WillReturnRows(sqlmock.NewRows([]string{"Id", "Name"}).AddRow(int64(8), "H"))

	var items []*Item
	require.NoError(t, e.Retrieve(context.Background(), &items, query, sql.Named("Min", 3)))
	require.Len(t, items, 1)
	assert.Equal(t, &Item{Id: 8, Name: "H"}, items[0])
}

func TestTableObservesLaterConfiguration(t *testing.T) {
	e, mock := newMockEngine(t)

	items, err := For[Item](e)
	require.NoError(t, err)

	mock.ExpectQuery(itemCount).WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(1)))
	count, err := items.CountAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, schema.ConfigureType[Item](e.Registry(), func(m *schema.MappingBuilder) {
		m.ToTable("Things")
	}))

	mock.ExpectQuery("SELECT COUNT(*) FROM [Things]").WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(2)))
	count, err = items.CountAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	m, err := items.Mapping()
	require.NoError(t, err)
	assert.Equal(t, "Things", m.Table.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountAll(t *testing.T) {
	e, mock := newMockEngine(t)
	mock.ExpectQuery(itemCount).WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(12)))

	count, err := e.CountAll(context.Background(), schema.TypeOf[Item]())
	require.NoError(t, err)
	assert.Equal(t, int64(12), count)
}

// =========================================================================
// Definition Tests
// =========================================================================

func TestTableDefinition(t *testing.T) {
	e, mock := newMockEngine(t)
	ctx := context.Background()
	typ := schema.TypeOf[Item]()

	mock.ExpectExec(itemCreate).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(tableExists).
		WithArgs(sql.Named("Schema", "dbo"), sql.Named("TableName", "Item")).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(1)))
	mock.ExpectExec(itemDrop).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(tableExists).
		WithArgs(sql.Named("Schema", "dbo"), sql.Named("TableName", "Item")).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(0)))

	require.NoError(t, e.CreateTable(ctx, typ))
	exists, err := e.TableExists(ctx, typ)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, e.DropTable(ctx, typ))
	exists, err = e.TableExists(ctx, typ)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTableRequiresValidMapping(t *testing.T) {
	e, mock := newMockEngine(t)

	err := e.CreateTable(context.Background(), schema.TypeOf[Loose]())
	assert.ErrorIs(t, err, schema.ErrNoKeyColumn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =========================================================================
// Scenarios
// =========================================================================

func TestItemScenario(t *testing.T) {
	e, mock := newMockEngine(t)
	ctx := context.Background()

	mock.ExpectExec(itemCreate).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectQuery(itemInsert).
		WithArgs(sql.Named("Name", "A"), sql.Named("Qty", nil)).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow([]byte("1")))
	mock.ExpectCommit()
	mock.ExpectQuery(itemSelectAll).WillReturnRows(sqlmock.NewRows(itemColumns).AddRow(int64(1), "A", nil))

	require.NoError(t, e.CreateTable(ctx, schema.TypeOf[Item]()))

	n, err := e.Insert(ctx, &Item{Id: 0, Name: "A", Qty: nil}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var items []Item
	require.NoError(t, e.SelectAll(ctx, &items))
	require.Len(t, items, 1)
	assert.Greater(t, items[0].Id, 0)
	assert.Equal(t, "A", items[0].Name)
	assert.Nil(t, items[0].Qty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoundTrip(t *testing.T) {
	e, mock := newMockEngine(t)
	ctx := context.Background()
	original := Note{Code: "rt-1", Body: "round trip", Rating: 4}

	mock.ExpectBegin()
	mock.ExpectExec(noteInsert).WithArgs(noteArgs(original)...).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(noteSelectByKey).WithArgs(sql.Named("Code", "rt-1")).
		WillReturnRows(sqlmock.NewRows([]string{"Code", "Body", "Rating"}).AddRow("rt-1", "round trip", int64(4)))

	_, err := e.Insert(ctx, &original, false)
	require.NoError(t, err)

	fresh := &Note{Code: original.Code}
	found, err := e.SelectSingle(ctx, fresh)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, original, *fresh)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =========================================================================
// Timeout / Metrics
// =========================================================================

func TestCommandTimeout(t *testing.T) {
	e, mock := newMockEngine(t, WithCommandTimeout(20*time.Millisecond))
	assert.Equal(t, 20*time.Millisecond, e.CommandTimeout())

	mock.ExpectBegin()
	mock.ExpectExec(itemDelete).WillDelayFor(time.Second).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	n, err := e.Delete(context.Background(), &Item{Id: 1})
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultCommandTimeout(t *testing.T) {
	e, _ := newMockEngine(t, WithCommandTimeout(0))
	assert.Equal(t, DefaultCommandTimeout, e.CommandTimeout())
}

func TestMetricsRecorded(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e, mock := newMockEngine(t, WithMetrics(m))

	mock.ExpectBegin()
	mock.ExpectExec(itemDelete).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(itemSelectAll).WillReturnRows(sqlmock.NewRows(itemColumns).
		AddRow(int64(1), "A", nil).AddRow(int64(2), "B", nil))

	_, err := e.Delete(context.Background(), &Item{Id: 1})
	require.NoError(t, err)
	_, err = e.Update(context.Background(), (*Item)(nil))
	require.Error(t, err)

	var items []Item
	require.NoError(t, e.SelectAll(context.Background(), &items))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues(opDelete, metrics.StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues(opUpdate, metrics.StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsAffected.WithLabelValues(opDelete)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowsRead.WithLabelValues(opSelectAll)))
}

func TestSharedRegistry(t *testing.T) {
	reg := schema.New()
	require.NoError(t, schema.ConfigureType[Item](reg, func(m *schema.MappingBuilder) {
		m.ToTable("Items", "inv")
	}))

	e, mock := newMockEngine(t, WithRegistry(reg))
	assert.Same(t, reg, e.Registry())
	assert.Same(t, reg, e.Generator().Registry())

	mock.ExpectQuery("SELECT COUNT(*) FROM [inv].[Items]").WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(int64(0)))
	_, err := e.CountAll(context.Background(), schema.TypeOf[Item]())
	require.NoError(t, err)

	g := command.NewGenerator(schema.New())
	e2, _ := newMockEngine(t, WithRegistry(reg), WithGenerator(g))
	assert.Same(t, g.Registry(), e2.Registry())
}
