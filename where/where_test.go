package where

import (
	"testing"
	"time"

	"github.com/hatlonely/morm/dialect"
	"github.com/hatlonely/morm/field"
	"github.com/hatlonely/morm/meta"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

type Item struct {
	ID    int64      `orm:"id,pk"`
	Name  string     `orm:"name"`
	Count int32      `orm:"count"`
	Price float64    `orm:"price"`
	Note  *string    `orm:"note,null"`
	Born  field.Date `orm:"born"`
	Seen  time.Time  `orm:"seen"`
	Flag  bool       `orm:"flag"`
}

func mustSchema(d dialect.Dialect) *meta.MetaModel {
	m, err := meta.Register[Item](meta.NewRegistry(d))
	if err != nil {
		panic(err)
	}
	return m
}

func TestCompile(t *testing.T) {
	Convey("测试条件编译", t, func() {
		schema := mustSchema(dialect.SQLite)
		compile := func(w Where) (string, []any, error) {
			return Compile(w, schema, dialect.SQLite)
		}

		Convey("空条件", func() {
			clause, args, err := compile(Where{})
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, "")
			So(args, ShouldBeEmpty)
		})

		Convey("比较运算符", func() {
			cases := []struct {
				w    Where
				want string
				arg  any
			}{
				{Eq("name", "foo"), `"name" = ?`, "foo"},
				{Ne("name", "foo"), `"name" != ?`, "foo"},
				{Gt("count", 1), `"count" > ?`, int64(1)},
				{Gte("count", 1), `"count" >= ?`, int64(1)},
				{Lt("price", 2.5), `"price" < ?`, 2.5},
				{Lte("price", 2), `"price" <= ?`, float64(2)},
				{Eq("born", field.NewDate(2012, time.January, 8)), `"born" = ?`, "2012-01-08"},
				{Eq("seen", time.Date(2012, 1, 8, 3, 4, 5, 0, time.UTC)), `"seen" = ?`, "2012-01-08 03:04:05"},
				{Eq("flag", true), `"flag" = ?`, true},
			}
			for _, c := range cases {
				clause, args, err := compile(c.w)
				So(err, ShouldBeNil)
				So(clause, ShouldEqual, c.want)
				So(args, ShouldResemble, []any{c.arg})
			}
		})

		Convey("pk 是主键的别名，也可以使用 Go 字段名", func() {
			clause, args, err := compile(Eq("pk", 5))
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, `"id" = ?`)
			So(args, ShouldResemble, []any{int64(5)})

			clause, _, err = compile(Eq("Count", 5))
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, `"count" = ?`)
		})

		Convey("复合条件子节点加括号，参数深度优先", func() {
			w := And(Eq("name", "foo"), Or(Gt("count", 1), IsNull("note", true)))
			clause, args, err := compile(w)
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, `"name" = ? AND ("count" > ? OR "note" IS NULL)`)
			So(args, ShouldResemble, []any{"foo", int64(1)})

			w = Or(And(Eq("name", "a"), Eq("count", 1)), And(Eq("name", "b"), Eq("count", 2)))
			clause, args, err = compile(w)
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, `("name" = ? AND "count" = ?) OR ("name" = ? AND "count" = ?)`)
			So(args, ShouldResemble, []any{"a", int64(1), "b", int64(2)})

			w = Eq("name", "a").And(Eq("count", 1)).And(Eq("price", 1.5))
			clause, _, err = compile(w)
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, `("name" = ? AND "count" = ?) AND "price" = ?`)
		})

		Convey("NOT", func() {
			clause, _, err := compile(Not(Eq("name", "a")))
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, `NOT "name" = ?`)

			clause, _, err = compile(Eq("name", "a").Or(Eq("name", "b")).Not())
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, `NOT ("name" = ? OR "name" = ?)`)
		})

		Convey("与空条件组合得到另一个操作数", func() {
			w := Eq("name", "foo")
			So(And(Where{}, w), ShouldResemble, w)
			So(w.Or(Where{}), ShouldResemble, w)
			So(And().IsEmpty(), ShouldBeTrue)
			So(Not(Where{}).IsEmpty(), ShouldBeTrue)
		})

		Convey("LIKE 转义", func() {
			clause, args, err := compile(Contains("name", `50%_off\`))
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, `"name" LIKE ? ESCAPE '\'`)
			So(args, ShouldResemble, []any{`%50\%\_off\\%`})

			_, args, err = compile(StartsWith("name", "foo"))
			So(err, ShouldBeNil)
			So(args, ShouldResemble, []any{"foo%"})

			_, args, err = compile(EndsWith("name", "foo"))
			So(err, ShouldBeNil)
			So(args, ShouldResemble, []any{"%foo"})
		})

		Convey("IN", func() {
			clause, args, err := compile(In("count", 1, 2, 3))
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, `"count" IN (?, ?, ?)`)
			So(args, ShouldResemble, []any{int64(1), int64(2), int64(3)})

			clause, args, err = compile(In("name", []string{"a", "b"}))
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, `"name" IN (?, ?)`)
			So(args, ShouldResemble, []any{"a", "b"})

			clause, args, err = compile(In("count"))
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, "1 = 0")
			So(args, ShouldBeEmpty)
		})

		Convey("NULL 判断", func() {
			clause, _, err := compile(IsNull("note", false))
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, `"note" IS NOT NULL`)

			clause, args, err := compile(Eq("note", nil))
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, `"note" IS NULL`)
			So(args, ShouldBeEmpty)

			clause, _, err = compile(Ne("note", nil))
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, `"note" IS NOT NULL`)
		})

		Convey("未知字段在编译时报错", func() {
			_, _, err := compile(And(Eq("name", "a"), Eq("missing", 1)))
			So(errors.Is(err, ErrLookup), ShouldBeTrue)
		})

		Convey("取值类型错误", func() {
			_, _, err := compile(Eq("count", "abc"))
			So(errors.Is(err, field.ErrConversion), ShouldBeTrue)

			_, _, err = compile(New("note", OpIsNull, "yes"))
			So(errors.Is(err, field.ErrConversion), ShouldBeTrue)

			_, _, err = compile(New("count", OpIsIn, 1))
			So(errors.Is(err, field.ErrConversion), ShouldBeTrue)
		})

		Convey("其他方言", func() {
			clause, _, err := Compile(Contains("name", "a"), mustSchema(dialect.MySQL), dialect.MySQL)
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, "`name` LIKE ?")

			clause, _, err = Compile(And(Eq("name", "a"), Gt("count", 1)), mustSchema(dialect.Postgres), dialect.Postgres)
			So(err, ShouldBeNil)
			So(clause, ShouldEqual, `"name" = ? AND "count" > ?`)
		})
	})
}
