package config

// 默认目标与残留引用检查列表。
const DefaultTarget = "app/instances/page.tsx"

// DefaultProbe 覆盖 Token 输入块 + Integração 选择块的全文正则。
const DefaultProbe = `(?s)(\s*<div className="space-y-3">\s*<label[^>]*>\s*<div[^/]*/>\s*Token de Acesso \(Opcional\).*?</div>\s*</div>\s*<div className="space-y-3">\s*<label[^>]*>\s*<div[^/]*/>\s*Integra)`

var defaultForbidden = []string{
	"newInstanceToken",
	"newInstanceIntegration",
	"Token de Acesso",
	"WHATSAPP-BAILEYS",
}

// tokenInfoBlock 替换 Token + Integração 两个表单块（含外层 space-y-3 容器）。
var tokenInfoBlock = []string{
	`                                {/* Info UazAPI */}`,
	`                                 <div className="flex items-start gap-3 p-4 rounded-2xl bg-[#d4af37]/5 border border-[#d4af37]/20">`,
	`                                     <span className="material-symbols-outlined text-[#d4af37] text-xl shrink-0 mt-0.5">info</span>`,
	`                                     <div>`,
	`                                         <p className="text-[#d4af37] text-[10px] font-black uppercase tracking-widest mb-1">Token automático</p>`,
	`                                         <p className="text-slate-500 text-xs leading-relaxed">O token será gerado automaticamente pelo UazAPI. Após criar, escaneie o QR Code.</p>`,
	`                                     </div>`,
	`                                 </div>`,
}

// modalInfoBlock 覆盖弹窗 599-611 行；首行为空行。
var modalInfoBlock = []string{
	``,
	`                                {/* Info UazAPI */}`,
	`                                <div className="flex items-start gap-3 p-4 rounded-2xl bg-[#d4af37]/5 border border-[#d4af37]/20">`,
	`                                    <span className="material-symbols-outlined text-[#d4af37] text-xl shrink-0 mt-0.5">info</span>`,
	`                                    <div>`,
	`                                        <p className="text-[#d4af37] text-[10px] font-black uppercase tracking-widest mb-1">Token automático</p>`,
	`                                        <p className="text-slate-500 text-xs leading-relaxed">O token será gerado automaticamente pelo servidor UazAPI. Após criar, conecte escaneando o QR Code.</p>`,
	`                                    </div>`,
	`                                </div>`,
}

// Presets 为内置规则集。每次调用返回新副本，调用方可自由修改。
func Presets() map[string][]Rule {
	return map[string][]Rule{
		"instances-token": {{
			Name:    "instances-token",
			Locator: "marker",
			Options: map[string]interface{}{
				"start":       "Token de Acesso (Opcional)",
				"through":     "INTEGRATION-WBC",
				"close":       "</div>",
				"close_depth": 2,
				"open":        `<div className="space-y-3">`,
				"lookback":    8,
			},
			Replacement: cloneStrings(tokenInfoBlock),
		}},
		"instances-modal": {{
			Name:    "instances-modal",
			Locator: "offset",
			Options: map[string]interface{}{
				"from_line": 599,
				"to_line":   611,
			},
			Replacement: cloneStrings(modalInfoBlock),
		}},
	}
}

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// 规则集展开为显式 rules，便于在生成的文件上直接修改。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	cfg.StoreOptions = map[string]interface{}{
		"atomic":   false,
		"buf_size": 65536,
	}
	cfg.Rules = Presets()[cfg.Preset]
	return cfg
}
