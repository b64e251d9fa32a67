package cfg

import (
	"os"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hatlonely/morm/cfg/validator"
	"github.com/pkg/errors"
)

// Load 读取配置文件，按扩展名解码，填充到 object 中，然后设置默认值并校验
func Load(path string, object any) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "os.ReadFile failed. path: [%v]", path)
	}

	return LoadBytes(data, format, object)
}

// LoadBytes 和 Load 相同，数据来自内存
func LoadBytes(data []byte, format Format, object any) error {
	values, err := Unmarshal(data, format)
	if err != nil {
		return err
	}

	if err := Decode(values, object); err != nil {
		return err
	}

	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "SetDefaults failed")
	}

	if err := validator.ValidateStruct(object); err != nil {
		return errors.Wrap(err, "validate failed")
	}

	return nil
}

// Decode 按 cfg tag 将通用结构映射到结构体上，字符串会被宽松地转换为目标类型
func Decode(input any, object any) error {
	if reflect.ValueOf(object).Kind() != reflect.Ptr {
		return errors.New("object must be a pointer")
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "cfg",
		WeaklyTypedInput: true,
		Result:           object,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return errors.Wrap(err, "mapstructure.NewDecoder failed")
	}

	if err := decoder.Decode(input); err != nil {
		return errors.Wrap(err, "decode failed")
	}

	return nil
}
