package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/mitchellh/mapstructure"
)

// EnvPrefix 为环境变量前缀。
const EnvPrefix = "BLOCKPATCH_"

// DefaultFile 为未显式指定配置文件时尝试读取的路径。
const DefaultFile = "blockpatch.json"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		Target:    DefaultTarget,
		Store:     "fs",
		Preset:    "instances-token",
		Probe:     DefaultProbe,
		Forbidden: cloneStrings(defaultForbidden),
		Logging:   Logging{Level: "info"},
	}
}

// Load 依次叠加：JSON 文件 < 环境变量 < flags，再与 Defaults 合并。
// path 为空时回退 BLOCKPATCH_CONFIG_FILE，再回退 ./blockpatch.json（存在时）。
// flags 的键为配置路径（如 "logging.level"），仅应包含用户显式设置的项。
func Load(path string, flags map[string]interface{}) (Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvPrefix + "CONFIG_FILE"))
	}
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("config: env: %w", err)
	}

	if len(flags) > 0 {
		if err := k.Load(confmap.Provider(flags, "."), nil); err != nil {
			return Config{}, fmt.Errorf("config: flags: %w", err)
		}
	}

	var over Config
	if err := unmarshalStrict(k, &over); err != nil {
		return Config{}, err
	}
	return Merge(Defaults(), over), nil
}

// envKey: BLOCKPATCH_LOGGING__LEVEL → logging.level；单个 "_" 保留（DRY_RUN → dry_run）。
// 返回空键表示忽略该变量。
func envKey(key, value string) (string, interface{}) {
	nk := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if nk == "config_file" || nk == "" {
		return "", nil
	}
	return strings.ReplaceAll(nk, "__", "."), value
}

// unmarshalStrict: koanf 默认解码配置 + ErrorUnused，拒绝未知键。
func unmarshalStrict(k *koanf.Koanf, out *Config) error {
	dc := &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.TextUnmarshallerHookFunc(),
		),
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	}
	if err := k.UnmarshalWithConf("", out, koanf.UnmarshalConf{Tag: "koanf", DecoderConfig: dc}); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 字符串空值与 nil 切片/映射视为未覆盖；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if v := strings.TrimSpace(over.Target); v != "" {
		out.Target = v
	}
	if v := strings.TrimSpace(over.Store); v != "" {
		out.Store = v
	}
	if over.StoreOptions != nil {
		out.StoreOptions = cloneMap(over.StoreOptions)
	}
	if v := strings.TrimSpace(over.Preset); v != "" {
		out.Preset = v
	}
	if over.Rules != nil {
		out.Rules = cloneRules(over.Rules)
	}
	if over.Probe != "" {
		out.Probe = over.Probe
	}
	// 显式空列表可关闭残留检查
	if over.Forbidden != nil {
		out.Forbidden = cloneStrings(over.Forbidden)
	}
	if over.DryRun {
		out.DryRun = true
	}
	if v := strings.TrimSpace(over.Logging.Level); v != "" {
		out.Logging.Level = v
	}
	if v := strings.TrimSpace(over.Logging.Dir); v != "" {
		out.Logging.Dir = v
	}
	if v := strings.TrimSpace(over.MetricsFile); v != "" {
		out.MetricsFile = v
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneMap(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneRules(in []Rule) []Rule {
	out := make([]Rule, len(in))
	for i, r := range in {
		r.Options = cloneMap(r.Options)
		r.Replacement = cloneStrings(r.Replacement)
		out[i] = r
	}
	return out
}
