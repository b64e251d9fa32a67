package inspect

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hatlonely/morm/dialect"
	"github.com/hatlonely/morm/meta"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

type Item struct {
	ID     int64   `orm:"id,pk"`
	Name   string  `orm:"name,index"`
	Code   string  `orm:"code,unique"`
	Weight *int32  `orm:"weight"`
	Price  float64 `orm:"price"`
}

func TestInspector(t *testing.T) {
	Convey("测试 Inspector", t, func() {
		ctx := context.Background()

		sqlDB, err := sql.Open("sqlite3", ":memory:")
		So(err, ShouldBeNil)
		sqlDB.SetMaxOpenConns(1)
		defer sqlDB.Close()

		mm, err := meta.Register[Item](meta.NewRegistry(dialect.SQLite))
		So(err, ShouldBeNil)

		inspector, err := New(sqlDB, dialect.SQLite)
		So(err, ShouldBeNil)

		So(inspector.HasTable(ctx, "item"), ShouldBeFalse)
		So(errors.Is(inspector.Verify(ctx, mm), ErrMismatch), ShouldBeTrue)

		for _, stmt := range mm.CreateTableSQL() {
			_, err := sqlDB.Exec(stmt)
			So(err, ShouldBeNil)
		}

		So(inspector.HasTable(ctx, "item"), ShouldBeTrue)
		So(inspector.HasIndex(ctx, "item", meta.IndexName("item", "name")), ShouldBeTrue)
		So(inspector.HasIndex(ctx, "item", meta.IndexName("item", "code")), ShouldBeFalse)
		So(inspector.Verify(ctx, mm), ShouldBeNil)

		columns, err := inspector.Columns(ctx, "item")
		So(err, ShouldBeNil)
		var names []string
		for _, c := range columns {
			names = append(names, c.Name)
		}
		So(names, ShouldResemble, []string{"id", "name", "code", "weight", "price"})

		Convey("索引被删除", func() {
			_, err := sqlDB.Exec(`DROP INDEX "` + meta.IndexName("item", "name") + `"`)
			So(err, ShouldBeNil)
			So(errors.Is(inspector.Verify(ctx, mm), ErrMismatch), ShouldBeTrue)
		})
	})

	Convey("不支持的方言", t, func() {
		_, err := New(nil, dialect.Postgres)
		So(errors.Is(err, ErrUnsupported), ShouldBeTrue)
	})
}
