package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	cfgpkg "blockpatch/internal/config"
	"blockpatch/internal/diag"
	"blockpatch/internal/pipeline"
)

var (
	pipelineRun  = pipeline.Run
	pipelineScan = pipeline.Scan
)

// 退出码：0 成功；1 运行期失败（I/O、解码）；3 配置/装配失败。
// 标记缺失与残留引用不影响退出码。
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

// exitError 携带退出码；err 为空时不输出。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// flagKeys: CLI 旗标名 → 配置路径（koanf 键）。
var flagKeys = map[string]string{
	"target":       "target",
	"store":        "store",
	"preset":       "preset",
	"dry-run":      "dry_run",
	"log-level":    "logging.level",
	"log-dir":      "logging.dir",
	"metrics-file": "metrics_file",
}

type options struct {
	config string
	status bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil && !errors.Is(ee.err, context.Canceled) {
			fprintf(stderr, "%v\n", ee.err)
		}
		return ee.code
	}
	// 旗标/参数解析错误
	fprintf(stderr, "参数错误: %v\n", err)
	return exitConfig
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "blockpatch",
		Short: "按标记或行号替换文本文件中的整块内容",
		Long: "blockpatch 载入目标文件，按序执行替换规则（定位器 + 替换块），写回原位置，\n" +
			"并报告残留引用。默认规则集修复 app/instances/page.tsx 的实例创建表单。",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, o, false)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.config, "config", "", "配置文件路径（JSON）；缺省读取 BLOCKPATCH_CONFIG_FILE 或 ./blockpatch.json（若存在）")
	pf.BoolVar(&o.status, "status", true, "终端状态提示（stdout）；TTY 着色")
	pf.String("target", "", "目标文件（本地路径或 afs URL；覆盖配置）")
	pf.String("store", "", "存储实现：fs | afs（覆盖配置）")
	pf.String("preset", "", "内置规则集：instances-token | instances-modal（配置未给出 rules 时生效）")
	pf.Bool("dry-run", false, "只报告，不写回")
	pf.String("log-level", "", "日志等级：debug | info | warn | error")
	pf.String("log-dir", "", "日志目录（默认 logs）")
	pf.String("metrics-file", "", "退出时写出 Prometheus 文本格式指标")

	root.AddCommand(newScanCmd(o))
	root.AddCommand(newInitConfigCmd())
	return root
}

func newScanCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "只扫描残留引用，不修改文件",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, o, true)
		},
	}
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [dir]",
		Short: "在指定目录生成默认配置 blockpatch.json（已存在则跳过，不覆盖）；dir 为 - 时输出到 stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = strings.TrimSpace(args[0])
			}
			cfg := cfgpkg.DefaultTemplateConfig()
			if dir == "-" {
				if err := writeConfig(cmd.OutOrStdout(), cfg); err != nil {
					return &exitError{exitConfig, fmt.Errorf("生成默认配置失败: %w", err)}
				}
				return nil
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return &exitError{exitConfig, fmt.Errorf("生成默认配置失败: %w", err)}
			}
			path := filepath.Join(dir, cfgpkg.DefaultFile)
			created, err := writeConfigFile(path, cfg)
			if err != nil {
				return &exitError{exitConfig, fmt.Errorf("生成默认配置失败: %w", err)}
			}
			if created {
				fprintf(cmd.OutOrStdout(), "已生成 %s\n", path)
			} else {
				fprintf(cmd.OutOrStdout(), "%s 已存在，跳过\n", path)
			}
			return nil
		},
	}
}

// execute: 加载配置 → 装配 → 运行（apply 或 scan）→ 写出指标。
func execute(cmd *cobra.Command, o *options, scanOnly bool) error {
	start := time.Now()
	corrID := uuid.NewString()
	stderr := cmd.ErrOrStderr()

	cfg, err := cfgpkg.Load(o.config, flagOverlay(cmd.Flags()))
	if err != nil {
		return &exitError{exitConfig, fmt.Errorf("配置解析失败: %w", err)}
	}

	logger := diag.NewLogger(corrID, cfg.Logging.Level, cfg.Logging.Dir)
	defer logger.Close()

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		logger.Error("pipeline", string(diag.Classify(err)), "assemble failed", &start, err)
		dumpConfig(stderr, cfg)
		return &exitError{exitConfig, fmt.Errorf("装配失败: %w", err)}
	}
	set.Terminal = diag.NewTerminal(cmd.OutOrStdout(), o.status)
	defer func() {
		if cfg.MetricsFile == "" {
			return
		}
		if err := diag.WriteMetrics(cfg.MetricsFile); err != nil {
			fprintf(stderr, "提示：指标写出失败（已跳过）：%v\n", err)
		}
	}()

	logger.Debug("config", "effective", "", map[string]string{
		"target":  set.Target,
		"store":   cfg.Store,
		"preset":  cfg.Preset,
		"rules":   strconv.Itoa(len(comp.Rules)),
		"dry_run": strconv.FormatBool(set.DryRun),
		"probe":   strconv.FormatBool(set.Probe != nil),
	})

	runFn, name := pipelineRun, "run"
	if scanOnly {
		runFn, name = pipelineScan, "scan"
	}
	t := logger.Start("pipeline", name)
	res, err := runFn(cmd.Context(), comp, set, logger)
	if err != nil {
		code := string(diag.Classify(err))
		logger.Error("pipeline", code, "first error", &start, err)
		diag.IncOp("pipeline", "error", "error")
		if code != string(diag.CodeUnknown) {
			diag.IncError("pipeline", code)
		}
		return &exitError{exitRuntime, fmt.Errorf("运行失败: %w", err)}
	}
	t.Finish(name, int64(len(res.Hits)))
	diag.IncOp("pipeline", "finish", "success")
	diag.ObserveDuration("pipeline", name, time.Since(start).Milliseconds())
	return nil
}

// flagOverlay 只收集用户显式设置的旗标，避免旗标默认值覆盖配置文件。
func flagOverlay(fs *pflag.FlagSet) map[string]interface{} {
	out := map[string]interface{}{}
	fs.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if f.Value.Type() == "bool" {
			v, err := strconv.ParseBool(f.Value.String())
			if err == nil {
				out[key] = v
			}
			return
		}
		out[key] = f.Value.String()
	})
	return out
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(w io.Writer, c cfgpkg.Config) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return
	}
	fprintf(w, "有效配置:\n%s\n", b)
}

func writeConfig(w io.Writer, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// writeConfigFile 不覆盖已存在文件；返回是否新建。
func writeConfigFile(path string, c cfgpkg.Config) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := writeConfig(f, c); err != nil {
		_ = f.Close()
		return true, err
	}
	return true, f.Close()
}
