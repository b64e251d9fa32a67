package cfg

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

var ErrUnknownFormat = errors.New("unknown config format")

// Format 配置文件格式
type Format string

const (
	FormatYaml Format = "yaml"
	FormatToml Format = "toml"
	FormatIni  Format = "ini"
	FormatJson Format = "json"
)

// FormatOf 根据文件扩展名推断格式
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYaml, nil
	case ".toml":
		return FormatToml, nil
	case ".ini", ".conf":
		return FormatIni, nil
	case ".json":
		return FormatJson, nil
	}
	return "", errors.Wrapf(ErrUnknownFormat, "%q", path)
}

// Unmarshal 将原始数据解码为通用的 map 结构
func Unmarshal(data []byte, format Format) (map[string]any, error) {
	result := map[string]any{}

	switch format {
	case FormatYaml:
		if err := yaml.Unmarshal(data, &result); err != nil {
			return nil, errors.Wrap(err, "yaml.Unmarshal failed")
		}
	case FormatToml:
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&result); err != nil {
			return nil, errors.Wrap(err, "toml.Decode failed")
		}
	case FormatJson:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()
		if err := decoder.Decode(&result); err != nil {
			return nil, errors.Wrap(err, "json.Decode failed")
		}
	case FormatIni:
		return unmarshalIni(data)
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", format)
	}

	return result, nil
}

// unmarshalIni 默认分区的键放在顶层，其他分区作为嵌套 map
func unmarshalIni(data []byte) (map[string]any, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         true,
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, errors.Wrap(err, "ini.Load failed")
	}

	result := map[string]any{}
	for _, section := range file.Sections() {
		values := result
		if section.Name() != ini.DefaultSection {
			values = nested(result, section.Name())
		}
		for _, key := range section.Keys() {
			values[key.Name()] = key.Value()
		}
	}
	return result, nil
}

// nested 按 a.b.c 的分区名逐级创建嵌套 map
func nested(m map[string]any, path string) map[string]any {
	for _, name := range strings.Split(path, ".") {
		child, ok := m[name].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[name] = child
		}
		m = child
	}
	return m
}
