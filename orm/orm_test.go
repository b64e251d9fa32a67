package orm

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hatlonely/morm/dialect"
	"github.com/hatlonely/morm/field"
	"github.com/hatlonely/morm/log/logger"
	"github.com/prometheus/client_golang/prometheus"
)

type TstBool struct {
	Model
	Value bool `orm:"value"`
}

func (TstBool) Table() string { return "tst_bool" }

type TstByteArray struct {
	Model
	Value []byte `orm:"value"`
}

func (TstByteArray) Table() string { return "tst_bytearray" }

type TstDate struct {
	Model
	Value field.Date `orm:"value"`
}

func (TstDate) Table() string { return "tst_date" }

type TstDateTime struct {
	Model
	Value time.Time `orm:"value"`
}

func (TstDateTime) Table() string { return "tst_datetime" }

type TstDouble struct {
	Model
	Value float64 `orm:"value"`
}

func (TstDouble) Table() string { return "tst_double" }

type TstInteger struct {
	Model
	Value int32 `orm:"value"`
}

func (TstInteger) Table() string { return "tst_integer" }

type TstLongLong struct {
	Model
	Value int64 `orm:"value"`
}

func (TstLongLong) Table() string { return "tst_longlong" }

type TstString struct {
	Model
	Value string `orm:"value"`
}

func (TstString) Table() string { return "tst_string" }

type TstTime struct {
	Model
	Value field.TimeOfDay `orm:"value"`
}

func (TstTime) Table() string { return "tst_time" }

type TstOptions struct {
	ID          int64  `orm:"id,pk"`
	IndexField  int32  `orm:"indexField,index"`
	NullField   *int32 `orm:"nullField,null"`
	UniqueField int32  `orm:"uniqueField,unique"`
}

func (TstOptions) Table() string { return "tst_options" }

type Book struct {
	Model
	Title  string  `orm:"title,max_length=64,index"`
	Author string  `orm:"author"`
	Pages  int32   `orm:"pages"`
	Price  float64 `orm:"price"`
}

// newTestDB 每个测试使用独立的内存库
func newTestDB(t *testing.T, opts ...Option) *DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	opts = append([]Option{WithLogger(logger.Nop()), WithRegisterer(prometheus.NewRegistry())}, opts...)
	return NewDB(sqlDB, dialect.SQLite, opts...)
}

// createTable 注册模型并建表
func createTable[T any](t *testing.T, db *DB) {
	t.Helper()

	mm, err := RegisterModel[T](db)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.CreateTable(context.Background(), mm); err != nil {
		t.Fatal(err)
	}
}

func int32Ptr(n int32) *int32 {
	return &n
}
