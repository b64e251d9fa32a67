package orm

import (
	"context"
	"testing"

	"github.com/hatlonely/morm/where"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func seedBooks(t *testing.T, db *DB) {
	t.Helper()

	books := []*Book{
		{Title: "The Go Programming Language", Author: "donovan", Pages: 380, Price: 35.5},
		{Title: "Learning SQL", Author: "beaulieu", Pages: 338, Price: 29.9},
		{Title: "Go in Action", Author: "kennedy", Pages: 264, Price: 24},
		{Title: "100% Go", Author: "anon", Pages: 10, Price: 1},
		{Title: "SQL_Antipatterns", Author: "karwin", Pages: 352, Price: 31},
	}
	for _, b := range books {
		if err := db.Save(context.Background(), b); err != nil {
			t.Fatal(err)
		}
	}
}

func titles(books []*Book) []string {
	var result []string
	for _, b := range books {
		result = append(result, b.Title)
	}
	return result
}

func TestQuerySetGet(t *testing.T) {
	Convey("测试 QuerySet.Get", t, func() {
		ctx := context.Background()
		db := newTestDB(t)
		createTable[Book](t, db)
		seedBooks(t, db)
		qs := NewQuerySet[Book](db)

		Convey("返回匹配的行数并填充第一行", func() {
			var out Book
			n, err := qs.OrderBy("pages").Get(ctx, where.Contains("title", "Go"), &out)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)
			So(out.Title, ShouldEqual, "100% Go")
			So(out.ID, ShouldEqual, 4)
		})

		Convey("没有匹配时返回 0 且不修改输出", func() {
			out := Book{Title: "keep"}
			n, err := qs.Get(ctx, where.Eq("author", "nobody"), &out)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
			So(out.Title, ShouldEqual, "keep")
		})

		Convey("空条件匹配所有行", func() {
			var out Book
			n, err := qs.Get(ctx, where.Where{}, &out)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 5)
		})

		Convey("LIKE 通配符被转义", func() {
			var out Book
			n, err := qs.Get(ctx, where.StartsWith("title", "100%"), &out)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			n, err = qs.Get(ctx, where.Contains("title", "_"), &out)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			So(out.Title, ShouldEqual, "SQL_Antipatterns")

			n, err = qs.Get(ctx, where.EndsWith("title", "SQL"), &out)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})

		Convey("未知字段是编译错误", func() {
			var out Book
			n, err := qs.Get(ctx, where.Eq("isbn", "x"), &out)
			So(n, ShouldEqual, 0)
			So(errors.Is(err, where.ErrLookup), ShouldBeTrue)
			So(errors.Is(err, ErrStore), ShouldBeFalse)
		})

		Convey("表被删除后是存储错误", func() {
			mm, err := RegisterModel[Book](db)
			So(err, ShouldBeNil)
			So(db.DropTable(ctx, mm), ShouldBeNil)

			var out Book
			n, err := qs.Get(ctx, where.Eq("pk", 1), &out)
			So(n, ShouldEqual, 0)
			So(errors.Is(err, ErrStore), ShouldBeTrue)
		})
	})
}

func TestQuerySetBuilders(t *testing.T) {
	Convey("测试 Filter/Exclude/OrderBy/Limit/Offset", t, func() {
		ctx := context.Background()
		db := newTestDB(t)
		createTable[Book](t, db)
		seedBooks(t, db)
		qs := NewQuerySet[Book](db)

		Convey("QuerySet 不可变", func() {
			filtered := qs.Filter(where.Gt("pages", 300))
			So(qs.Where().IsEmpty(), ShouldBeTrue)
			So(filtered.Where().IsEmpty(), ShouldBeFalse)

			all, err := qs.All(ctx)
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 5)

			big, err := filtered.All(ctx)
			So(err, ShouldBeNil)
			So(len(big), ShouldEqual, 3)
		})

		Convey("Filter 取 AND", func() {
			books, err := qs.Filter(where.Gt("pages", 300)).Filter(where.Lt("price", 32)).OrderBy("title").All(ctx)
			So(err, ShouldBeNil)
			So(titles(books), ShouldResemble, []string{"Learning SQL", "SQL_Antipatterns"})
		})

		Convey("Or 和 In", func() {
			books, err := qs.Filter(where.Or(where.Eq("author", "anon"), where.In("pages", 264, 338))).OrderBy("-pages").All(ctx)
			So(err, ShouldBeNil)
			So(titles(books), ShouldResemble, []string{"Learning SQL", "Go in Action", "100% Go"})

			books, err = qs.Filter(where.In("pages")).All(ctx)
			So(err, ShouldBeNil)
			So(len(books), ShouldEqual, 0)
		})

		Convey("Exclude", func() {
			books, err := qs.Exclude(where.Contains("title", "Go")).OrderBy("pk").All(ctx)
			So(err, ShouldBeNil)
			So(titles(books), ShouldResemble, []string{"Learning SQL", "SQL_Antipatterns"})
		})

		Convey("Limit 和 Offset", func() {
			books, err := qs.OrderBy("pages").Limit(2).All(ctx)
			So(err, ShouldBeNil)
			So(titles(books), ShouldResemble, []string{"100% Go", "Go in Action"})

			books, err = qs.OrderBy("pages").Limit(2).Offset(1).All(ctx)
			So(err, ShouldBeNil)
			So(titles(books), ShouldResemble, []string{"Go in Action", "Learning SQL"})

			books, err = qs.OrderBy("pages").Offset(3).All(ctx)
			So(err, ShouldBeNil)
			So(titles(books), ShouldResemble, []string{"SQL_Antipatterns", "The Go Programming Language"})

			count, err := qs.Limit(1).Count(ctx)
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 5)
		})

		Convey("排序列未知", func() {
			_, err := qs.OrderBy("-isbn").All(ctx)
			So(errors.Is(err, where.ErrLookup), ShouldBeTrue)
		})

		Convey("解析文本条件", func() {
			w, err := where.Parse(`pages >= 300 AND NOT author = "karwin"`)
			So(err, ShouldBeNil)
			books, err := qs.Filter(w).OrderBy("-price").All(ctx)
			So(err, ShouldBeNil)
			So(titles(books), ShouldResemble, []string{"The Go Programming Language", "Learning SQL"})
		})
	})
}

func TestQuerySetWrites(t *testing.T) {
	Convey("测试 QuerySet 的 Update/Delete", t, func() {
		ctx := context.Background()
		db := newTestDB(t)
		createTable[Book](t, db)
		seedBooks(t, db)
		qs := NewQuerySet[Book](db)

		Convey("Update", func() {
			n, err := qs.Filter(where.Contains("title", "SQL")).Update(ctx, map[string]any{"price": 10, "Author": "someone"})
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)

			count, err := qs.Filter(where.Eq("author", "someone")).Filter(where.Eq("price", 10.0)).Count(ctx)
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 2)

			n, err = qs.Update(ctx, nil)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)

			_, err = qs.Update(ctx, map[string]any{"isbn": "x"})
			So(errors.Is(err, where.ErrLookup), ShouldBeTrue)
		})

		Convey("Delete", func() {
			n, err := qs.Filter(where.Lt("pages", 300)).Delete(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)

			count, err := qs.Count(ctx)
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 3)

			n, err = qs.Delete(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)
		})
	})
}

func TestQuerySetSchemaError(t *testing.T) {
	Convey("测试模型注册失败", t, func() {
		type NoKey struct {
			Name string
		}
		db := newTestDB(t)
		qs := NewQuerySet[NoKey](db)

		_, err := qs.All(context.Background())
		So(err, ShouldNotBeNil)
		_, err = qs.Count(context.Background())
		So(err, ShouldNotBeNil)
	})
}
