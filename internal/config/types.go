package config

// Config: 运行期只读配置（一次解析，运行期不变）。
// 键名使用 snake_case；未知键在解析期失败。
type Config struct {
	// Target: 目标文档（本地路径或 afs URL）。
	Target string `koanf:"target" json:"target"`
	// Store: 存储实现名（注册表键，"fs" | "afs"）。
	Store        string                 `koanf:"store" json:"store"`
	StoreOptions map[string]interface{} `koanf:"store_options" json:"store_options,omitempty"`

	// Preset: 内置规则集名；Rules 非空时忽略。
	Preset string `koanf:"preset" json:"preset"`
	Rules  []Rule `koanf:"rules" json:"rules,omitempty"`

	// Probe: 可选的全文正则探测（仅报告，不影响规则执行）。
	Probe string `koanf:"probe" json:"probe"`
	// Forbidden: 执行后需要报告的残留引用子串。
	Forbidden []string `koanf:"forbidden" json:"forbidden"`

	DryRun      bool    `koanf:"dry_run" json:"dry_run"`
	Logging     Logging `koanf:"logging" json:"logging"`
	MetricsFile string  `koanf:"metrics_file" json:"metrics_file"`
}

// Logging: 日志等级与目录；文件名与轮转策略为固定默认。
type Logging struct {
	Level string `koanf:"level" json:"level"`
	Dir   string `koanf:"dir" json:"dir"`
}

// Rule: 一条替换规则（定位器 + 替换块）。
type Rule struct {
	Name    string                 `koanf:"name" json:"name"`
	Locator string                 `koanf:"locator" json:"locator"`
	Options map[string]interface{} `koanf:"options" json:"options"`
	// Replacement: 替换块，按行给出，不含换行符。
	Replacement []string `koanf:"replacement" json:"replacement"`
	// AllowEmpty: 允许空替换块（纯删除）。
	AllowEmpty bool `koanf:"allow_empty" json:"allow_empty,omitempty"`
}
