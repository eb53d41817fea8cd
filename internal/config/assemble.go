package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"blockpatch/internal/pipeline"
	"blockpatch/pkg/registry"
)

// ProbeOff 关闭全文探测。
const ProbeOff = "off"

// EffectiveRules 返回实际执行的规则：显式 rules 优先，否则展开 preset。
func EffectiveRules(cfg Config) ([]Rule, error) {
	if len(cfg.Rules) > 0 {
		return cfg.Rules, nil
	}
	name := strings.TrimSpace(cfg.Preset)
	if name == "" {
		return nil, errors.New("config: no rules and no preset")
	}
	rules, ok := Presets()[name]
	if !ok {
		return nil, fmt.Errorf("config: preset %q not found", name)
	}
	return rules, nil
}

// Validate 对最小必要边界做静态校验；定位器选项由工厂在 Assemble 中严格校验。
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Target) == "" {
		return errors.New("config: target empty")
	}
	if registry.Store[cfg.Store] == nil {
		return fmt.Errorf("config: store %q not registered", cfg.Store)
	}
	rules, err := EffectiveRules(cfg)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("config: rules[%d]: name empty", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("config: rule %q: duplicate name", r.Name)
		}
		seen[r.Name] = true
		if registry.Locator[r.Locator] == nil {
			return fmt.Errorf("config: rule %q: locator %q not registered", r.Name, r.Locator)
		}
		if len(r.Replacement) == 0 && !r.AllowEmpty {
			return fmt.Errorf("config: rule %q: replacement empty (set allow_empty to delete)", r.Name)
		}
	}
	if p := cfg.Probe; p != "" && p != ProbeOff {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("config: probe: %w", err)
		}
	}
	for _, m := range cfg.Forbidden {
		if m == "" {
			return errors.New("config: forbidden marker cannot be empty")
		}
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只把选项子树转为 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	raw, err := rawOptions(cfg.StoreOptions)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: store_options: %w", err)
	}
	st, err := registry.Store[cfg.Store](raw)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: store %q: %w", cfg.Store, err)
	}

	rules, _ := EffectiveRules(cfg)
	prs := make([]pipeline.Rule, 0, len(rules))
	for _, r := range rules {
		raw, err := rawOptions(r.Options)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: rule %q: %w", r.Name, err)
		}
		loc, err := registry.Locator[r.Locator](raw)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: rule %q: %w", r.Name, err)
		}
		prs = append(prs, pipeline.Rule{
			Name:        r.Name,
			Locator:     loc,
			Replacement: cloneStrings(r.Replacement),
		})
	}

	set := pipeline.Settings{
		Target:    strings.TrimSpace(cfg.Target),
		DryRun:    cfg.DryRun,
		Forbidden: cloneStrings(cfg.Forbidden),
	}
	if p := cfg.Probe; p != "" && p != ProbeOff {
		set.Probe = regexp.MustCompile(p)
	}
	return pipeline.Components{Store: st, Rules: prs}, set, nil
}

func rawOptions(m map[string]interface{}) (json.RawMessage, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
