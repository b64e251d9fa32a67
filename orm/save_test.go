package orm

import (
	"context"
	"testing"
	"time"

	"github.com/hatlonely/morm/field"
	"github.com/hatlonely/morm/keygen"
	"github.com/hatlonely/morm/meta"
	"github.com/hatlonely/morm/where"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

// roundTrip 保存一个值后按值查询，返回查到的行数和实例
func roundTrip[T any](db *DB, instance *T, value any) (int, *T, error) {
	ctx := context.Background()
	if err := db.Save(ctx, instance); err != nil {
		return 0, nil, err
	}
	out := new(T)
	n, err := NewQuerySet[T](db).Get(ctx, where.Eq("value", value), out)
	return n, out, err
}

func TestFieldRoundTrip(t *testing.T) {
	Convey("测试每种字段类型的保存和查询", t, func() {
		db := newTestDB(t)

		Convey("bool", func() {
			createTable[TstBool](t, db)
			for _, v := range []bool{true, false} {
				n, out, err := roundTrip(db, &TstBool{Value: v}, v)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				So(out.Value, ShouldEqual, v)
			}
		})

		Convey("bytearray", func() {
			createTable[TstByteArray](t, db)
			for _, v := range [][]byte{[]byte("01234567"), []byte("\x00\x01\x02\x03\x04\x05\x06\x07")} {
				n, out, err := roundTrip(db, &TstByteArray{Value: v}, v)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				So(out.Value, ShouldResemble, v)
			}
		})

		Convey("date", func() {
			createTable[TstDate](t, db)
			v := field.NewDate(2012, time.January, 8)
			n, out, err := roundTrip(db, &TstDate{Value: v}, v)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			So(out.Value, ShouldResemble, v)
		})

		Convey("未设置的 date 拒绝保存", func() {
			createTable[TstDate](t, db)
			ctx := context.Background()
			unset := &TstDate{}
			err := db.Save(ctx, unset)
			So(errors.Is(err, field.ErrConversion), ShouldBeTrue)
			So(unset.ID, ShouldEqual, 0)

			count, err := NewQuerySet[TstDate](db).Count(ctx)
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 0)
		})

		Convey("datetime", func() {
			createTable[TstDateTime](t, db)
			v := time.Date(2012, 1, 8, 3, 4, 5, 0, time.UTC)
			n, out, err := roundTrip(db, &TstDateTime{Value: v}, v)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			So(out.Value.Equal(v), ShouldBeTrue)
		})

		Convey("double", func() {
			createTable[TstDouble](t, db)
			n, out, err := roundTrip(db, &TstDouble{Value: 3.14159}, 3.14159)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			So(out.Value, ShouldEqual, 3.14159)
		})

		Convey("integer", func() {
			createTable[TstInteger](t, db)
			for _, v := range []int32{0, -2147483647, 2147483647} {
				n, out, err := roundTrip(db, &TstInteger{Value: v}, v)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				So(out.Value, ShouldEqual, v)
			}
		})

		Convey("longlong", func() {
			createTable[TstLongLong](t, db)
			for _, v := range []int64{0, -9223372036854775807, 9223372036854775807} {
				n, out, err := roundTrip(db, &TstLongLong{Value: v}, v)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				So(out.Value, ShouldEqual, v)
			}
		})

		Convey("string", func() {
			createTable[TstString](t, db)
			n, out, err := roundTrip(db, &TstString{Value: "foo bar"}, "foo bar")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			So(out.Value, ShouldEqual, "foo bar")
		})

		Convey("time", func() {
			createTable[TstTime](t, db)
			v := field.NewTimeOfDay(3, 4, 5)
			n, out, err := roundTrip(db, &TstTime{Value: v}, v)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			So(out.Value, ShouldResemble, v)
		})
	})
}

func TestOptionsFields(t *testing.T) {
	Convey("测试 null/index/unique 字段", t, func() {
		ctx := context.Background()
		db := newTestDB(t)
		createTable[TstOptions](t, db)
		qs := NewQuerySet[TstOptions](db)

		So(db.Save(ctx, &TstOptions{IndexField: 1, UniqueField: 1}), ShouldBeNil)
		So(db.Save(ctx, &TstOptions{IndexField: 1, NullField: int32Ptr(2), UniqueField: 2}), ShouldBeNil)

		var out TstOptions
		n, err := qs.Get(ctx, where.IsNull("nullField", true), &out)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 1)
		So(out.NullField, ShouldBeNil)
		So(out.UniqueField, ShouldEqual, 1)

		n, err = qs.Get(ctx, where.Eq("nullField", 2), &out)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 1)
		So(*out.NullField, ShouldEqual, 2)

		n, err = qs.Get(ctx, where.Eq("indexField", 1), &out)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 2)

		Convey("唯一约束冲突", func() {
			o := &TstOptions{UniqueField: 1}
			err := db.Save(ctx, o)
			So(errors.Is(err, ErrStore), ShouldBeTrue)
			So(o.ID, ShouldEqual, 0)
		})
	})
}

func TestSave(t *testing.T) {
	Convey("测试 Save", t, func() {
		ctx := context.Background()
		db := newTestDB(t)
		createTable[Book](t, db)
		qs := NewQuerySet[Book](db)

		book := &Book{Title: "Go", Author: "rob", Pages: 100, Price: 9.5}
		So(db.Save(ctx, book), ShouldBeNil)
		So(book.ID, ShouldEqual, 1)
		So(book.Saved(), ShouldBeTrue)

		Convey("主键存在时更新", func() {
			book.Pages = 200
			So(db.Save(ctx, book), ShouldBeNil)
			So(book.ID, ShouldEqual, 1)

			count, err := qs.Count(ctx)
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 1)

			var out Book
			n, err := qs.Get(ctx, where.Eq("pk", book.ID), &out)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			So(out.Pages, ShouldEqual, 200)
		})

		Convey("主键不存在时按该主键插入", func() {
			explicit := &Book{Model: Model{ID: 42}, Title: "SQL"}
			So(db.Save(ctx, explicit), ShouldBeNil)
			So(explicit.ID, ShouldEqual, 42)

			var out Book
			n, err := qs.Get(ctx, where.Eq("id", 42), &out)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			So(out.Title, ShouldEqual, "SQL")

			next := &Book{Title: "next"}
			So(db.Save(ctx, next), ShouldBeNil)
			So(next.ID, ShouldEqual, 43)
		})

		Convey("转换失败时不执行语句", func() {
			type Overflow struct {
				ID    int64  `orm:"id,pk"`
				Value uint32 `orm:"value,type=integer"`
			}
			o := &Overflow{Value: 1 << 31}
			err := db.Save(ctx, o)
			So(errors.Is(err, field.ErrConversion), ShouldBeTrue)
			So(errors.Is(err, ErrStore), ShouldBeFalse)
			So(o.ID, ShouldEqual, 0)
		})

		Convey("表不存在", func() {
			mm, err := RegisterModel[Book](db)
			So(err, ShouldBeNil)
			So(db.DropTable(ctx, mm), ShouldBeNil)

			b := &Book{Title: "lost"}
			err = db.Save(ctx, b)
			So(errors.Is(err, ErrStore), ShouldBeTrue)
			So(b.ID, ShouldEqual, 0)

			var se *StoreError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.Op, ShouldEqual, "insert")
			So(se.Query, ShouldStartWith, `INSERT INTO "book"`)
		})

		Convey("非法实例", func() {
			So(errors.Is(db.Save(ctx, nil), meta.ErrSchema), ShouldBeTrue)
			So(errors.Is(db.Save(ctx, Book{}), meta.ErrSchema), ShouldBeTrue)
			So(errors.Is(db.Save(ctx, (*Book)(nil)), meta.ErrSchema), ShouldBeTrue)
			So(errors.Is(db.Save(ctx, &struct{ Name string }{}), meta.ErrSchema), ShouldBeTrue)
		})
	})
}

func TestRemove(t *testing.T) {
	Convey("测试 Remove", t, func() {
		ctx := context.Background()
		db := newTestDB(t)
		createTable[Book](t, db)
		qs := NewQuerySet[Book](db)

		book := &Book{Title: "Go"}
		So(db.Save(ctx, book), ShouldBeNil)

		So(db.Remove(ctx, book), ShouldBeNil)
		So(book.ID, ShouldEqual, 0)

		count, err := qs.Count(ctx)
		So(err, ShouldBeNil)
		So(count, ShouldEqual, 0)

		So(errors.Is(db.Remove(ctx, book), ErrUnsaved), ShouldBeTrue)

		Convey("删除后再保存会插入新行", func() {
			So(db.Save(ctx, book), ShouldBeNil)
			So(book.ID, ShouldEqual, 2)
		})
	})
}

type KeyOnly struct {
	ID int64
}

func TestKeyOnlyModel(t *testing.T) {
	Convey("测试只有主键的模型", t, func() {
		ctx := context.Background()
		db := newTestDB(t)
		createTable[KeyOnly](t, db)

		k := &KeyOnly{}
		So(db.Save(ctx, k), ShouldBeNil)
		So(k.ID, ShouldEqual, 1)
		So(db.Save(ctx, k), ShouldBeNil)

		count, err := NewQuerySet[KeyOnly](db).Count(ctx)
		So(err, ShouldBeNil)
		So(count, ShouldEqual, 1)
	})
}

func TestKeyGenerator(t *testing.T) {
	Convey("测试主键生成器", t, func() {
		ctx := context.Background()
		machineID := int64(1)
		g, err := keygen.NewSnowflakeWithOptions(&keygen.SnowflakeOptions{MachineID: &machineID})
		So(err, ShouldBeNil)

		db := newTestDB(t, WithKeyGenerator(g))
		createTable[Book](t, db)

		b1 := &Book{Title: "a"}
		b2 := &Book{Title: "b"}
		So(db.Save(ctx, b1), ShouldBeNil)
		So(db.Save(ctx, b2), ShouldBeNil)
		So(b1.ID, ShouldBeGreaterThan, 1<<22)
		So(b2.ID, ShouldBeGreaterThan, b1.ID)

		var out Book
		n, err := NewQuerySet[Book](db).Get(ctx, where.Eq("pk", b2.ID), &out)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 1)
		So(out.Title, ShouldEqual, "b")

		Convey("已有主键时按原逻辑更新", func() {
			b1.Title = "c"
			So(db.Save(ctx, b1), ShouldBeNil)
			count, err := NewQuerySet[Book](db).Count(ctx)
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 2)
		})
	})
}
