package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"blockpatch/internal/diag"
	"blockpatch/internal/patch"
	"blockpatch/pkg/contract"
)

// - 单线程同步：load → probe → rules（按序）→ save → scan。
// - 规则定位失败（标记缺失/未闭合）只跳过该规则，不中断其余规则。
// - 文档未变化时不写回；再次运行为逐字节不变的 no-op。
// - 无重试、无回滚：I/O 错误原样上抛。

// excerptRadius: debug 级别下记录的编辑区间上下文行数。
const excerptRadius = 2

// Rule 为装配完成的替换规则。
type Rule struct {
	Name        string
	Locator     contract.Locator
	Replacement []string
}

// Components 聚合运行所需的组件。
type Components struct {
	Store contract.Store
	Rules []Rule
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Target string
	// DryRun: 只报告，不写回。
	DryRun bool
	// Forbidden: 执行后扫描的残留引用子串。
	Forbidden []string
	// Probe: 可选的全文正则探测；nil 表示关闭。
	Probe *regexp.Regexp
	// Terminal: 人工核对输出；nil 表示静默。
	Terminal *diag.Terminal
}

// Outcome 为单条规则的执行结果。
type Outcome struct {
	Rule     string
	Applied  bool
	Region   contract.Region
	Inserted int
	// Err: 被跳过时的原因（ErrNotFound / ErrUnterminated）。
	Err error
}

// Result 汇总一次运行。
type Result struct {
	Outcomes []Outcome
	// Lines: 结果文档行数。
	Lines int
	// Changed: 文档内容是否发生变化；Written: 是否已写回。
	Changed bool
	Written bool
	Hits    []contract.Hit

	ProbeFound bool
	ProbeFrom  int
	ProbeTo    int
}

// Status 返回写回状态：written | unchanged | dry-run。
func (r Result) Status() string {
	switch {
	case r.Written:
		return "written"
	case r.Changed:
		return "dry-run"
	default:
		return "unchanged"
	}
}

// Run 执行完整流程：Store.Load → Probe → Rules → Store.Save → Scan。
// 返回的错误均为致命错误（I/O、解码、区间非法）；被跳过的规则记录在 Result.Outcomes 中。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Result, error) {
	var res Result
	if err := sanity(comp, set); err != nil {
		return res, fmt.Errorf("sanity: %w", err)
	}
	t0 := time.Now()
	term := set.Terminal

	doc, err := load(ctx, comp.Store, set.Target, logger)
	if err != nil {
		term.Fail(err)
		return res, err
	}
	fid := string(doc.ID)
	term.Target(fid, doc.Len())

	if set.Probe != nil {
		res.ProbeFrom, res.ProbeTo, res.ProbeFound = patch.Probe(doc, set.Probe)
		logger.Debug("probe", "probe", fid, map[string]string{
			"found": strconv.FormatBool(res.ProbeFound),
			"from":  strconv.Itoa(res.ProbeFrom),
			"to":    strconv.Itoa(res.ProbeTo),
		})
		term.Probe(res.ProbeFound, res.ProbeFrom, res.ProbeTo)
	}

	out := doc
	for _, rule := range comp.Rules {
		if err := ctx.Err(); err != nil {
			term.Fail(err)
			return res, err
		}
		next, oc, err := applyRule(out, rule, logger)
		res.Outcomes = append(res.Outcomes, oc)
		if err != nil {
			if contract.Skippable(err) {
				term.RuleSkipped(rule.Name, err)
				continue
			}
			term.Fail(err)
			return res, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		term.RuleApplied(rule.Name, oc.Region, oc.Inserted)
		out = next
	}

	res.Lines = out.Len()
	res.Changed = out.Text() != doc.Text()
	if res.Changed && !set.DryRun {
		if err := save(ctx, comp.Store, set.Target, out, logger); err != nil {
			term.Fail(err)
			return res, err
		}
		res.Written = true
	}

	res.Hits = scan(out, set.Forbidden, logger)
	term.Report(res.Hits)
	term.Done(res.Lines, res.Status(), time.Since(t0))
	return res, nil
}

// Scan 只载入并扫描残留引用，从不写回。
func Scan(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Result, error) {
	var res Result
	if comp.Store == nil {
		return res, errors.New("sanity: store is nil")
	}
	t0 := time.Now()
	term := set.Terminal
	doc, err := load(ctx, comp.Store, set.Target, logger)
	if err != nil {
		term.Fail(err)
		return res, err
	}
	term.Target(string(doc.ID), doc.Len())
	if set.Probe != nil {
		res.ProbeFrom, res.ProbeTo, res.ProbeFound = patch.Probe(doc, set.Probe)
		term.Probe(res.ProbeFound, res.ProbeFrom, res.ProbeTo)
	}
	res.Lines = doc.Len()
	res.Hits = scan(doc, set.Forbidden, logger)
	term.Report(res.Hits)
	term.Done(res.Lines, res.Status(), time.Since(t0))
	return res, nil
}

func load(ctx context.Context, st contract.Store, target string, logger *diag.Logger) (contract.Document, error) {
	t0 := time.Now()
	timer := logger.StartWith("store", "load", target)
	doc, err := st.Load(ctx, target)
	if err != nil {
		fail(logger, "store", "load failed", &t0, target, err)
		return contract.Document{}, fmt.Errorf("store load: %w", err)
	}
	timer.Finish("load", int64(doc.Len()))
	diag.IncOp("store", "load", "success")
	return doc, nil
}

func save(ctx context.Context, st contract.Store, target string, doc contract.Document, logger *diag.Logger) error {
	t0 := time.Now()
	timer := logger.StartWith("store", "save", target)
	if err := st.Save(ctx, target, doc); err != nil {
		fail(logger, "store", "save failed", &t0, target, err)
		return fmt.Errorf("store save: %w", err)
	}
	timer.Finish("save", int64(doc.Len()))
	diag.IncOp("store", "save", "success")
	return nil
}

// applyRule 定位并替换，同时校验长度守恒：len(out) = len(in) - len(region) + len(block)。
func applyRule(doc contract.Document, rule Rule, logger *diag.Logger) (contract.Document, Outcome, error) {
	fid := string(doc.ID)
	oc := Outcome{Rule: rule.Name}
	t0 := time.Now()
	timer := logger.StartWith("rule", rule.Name, fid)

	out, r, err := patch.Apply(doc, rule.Locator, rule.Replacement)
	if err != nil {
		oc.Err = err
		if contract.Skippable(err) {
			logger.Warn("rule", string(diag.Classify(err)), "rule skipped", fid, map[string]string{
				"rule": rule.Name,
				"err":  err.Error(),
			})
			diag.IncOp("rule", "apply", "skip")
			return doc, oc, err
		}
		fail(logger, "rule", "apply failed", &t0, fid, err)
		return doc, oc, err
	}
	if want := doc.Len() - r.Len() + len(rule.Replacement); out.Len() != want {
		err := fmt.Errorf("%w: %d lines after replace, want %d", contract.ErrInvariantViolation, out.Len(), want)
		oc.Err = err
		fail(logger, "rule", "length check failed", &t0, fid, err)
		return doc, oc, err
	}

	oc.Applied = true
	oc.Region = r
	oc.Inserted = len(rule.Replacement)
	logger.Debug("rule", "before", fid, map[string]string{
		"rule":    rule.Name,
		"region":  r.String(),
		"excerpt": strings.Join(patch.Window(doc, r, excerptRadius), "\n"),
	})
	after := contract.Region{Start: r.Start, End: r.Start + len(rule.Replacement)}
	logger.Debug("rule", "after", fid, map[string]string{
		"rule":    rule.Name,
		"excerpt": strings.Join(patch.Window(out, after, excerptRadius), "\n"),
	})
	timer.Finish("applied", int64(r.Len()))
	diag.IncOp("rule", "apply", "success")
	return out, oc, nil
}

func scan(doc contract.Document, forbidden []string, logger *diag.Logger) []contract.Hit {
	timer := logger.StartWith("report", "scan", string(doc.ID))
	hits := patch.Scan(doc, forbidden)
	timer.Finish("scan", int64(len(hits)))
	diag.IncOp("report", "scan", "success")
	return hits
}

func fail(logger *diag.Logger, comp, msg string, t0 *time.Time, fileID string, err error) {
	code := diag.Classify(err)
	logger.ErrorWith(comp, string(code), msg, t0, fileID, err)
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
}

func sanity(comp Components, set Settings) error {
	if comp.Store == nil {
		return errors.New("store is nil")
	}
	if strings.TrimSpace(set.Target) == "" {
		return fmt.Errorf("%w: target empty", contract.ErrPathInvalid)
	}
	for i, r := range comp.Rules {
		if r.Locator == nil {
			return fmt.Errorf("rule %d (%s): locator is nil", i, r.Name)
		}
	}
	return nil
}
