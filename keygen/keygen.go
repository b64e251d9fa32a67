package keygen

import (
	"context"

	"github.com/hatlonely/morm/ref"
)

const Namespace = "github.com/hatlonely/morm/keygen"

func init() {
	ref.MustRegisterT[*Snowflake](NewSnowflakeWithOptions)
	ref.MustRegisterT[*Redis](NewRedisWithOptions)
}

// KeyGenerator 在插入前为表生成主键，返回值必须大于 0
type KeyGenerator interface {
	Next(ctx context.Context, table string) (int64, error)
}

func NewKeyGeneratorWithOptions(options *ref.TypeOptions) (KeyGenerator, error) {
	return ref.NewWithOptions[KeyGenerator](Namespace, options)
}
