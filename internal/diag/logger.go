package diag

import (
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 默认日志文件：<dir>/blockpatch.log，10 MiB 轮转，保留 3 份。
const (
	logFileName   = "blockpatch.log"
	logMaxSizeMB  = 10
	logMaxBackups = 3
)

// Logger 为最小结构化日志器：单行 JSON 事件（comp/stage/code/dur_ms/count/file_id）。
// 所有方法对 nil 接收者安全。
type Logger struct {
	z    *zap.Logger
	sink *lumberjack.Logger
}

// NewLogger 以配置的 level 初始化，写入 dir 下的轮转文件；dir 为空时使用 "logs"。
func NewLogger(corrID, level, dir string) *Logger {
	if strings.TrimSpace(dir) == "" {
		dir = "logs"
	}
	sink := &lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(sink), parseLevel(level))
	return &Logger{z: zap.New(core).With(zap.String("corr_id", corrID)), sink: sink}
}

// NewWithCore 使用外部 core（测试或嵌入场景）。
func NewWithCore(corrID string, core zapcore.Core) *Logger {
	return &Logger{z: zap.New(core).With(zap.String("corr_id", corrID))}
}

// Close 刷新并关闭日志文件。
func (l *Logger) Close() error {
	if l == nil || l.z == nil {
		return nil
	}
	_ = l.z.Sync()
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.MessageKey = "msg"
	ec.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	ec.CallerKey = ""
	return ec
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) log(lv zapcore.Level, msg string, fields ...zap.Field) {
	if l == nil || l.z == nil {
		return
	}
	if ce := l.z.Check(lv, msg); ce != nil {
		ce.Write(fields...)
	}
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWith(comp, msg, "")
}

// StartWith 记录带 file_id 的 start。
func (l *Logger) StartWith(comp, msg, fileID string) *Timer {
	l.log(zapcore.InfoLevel, msg, zap.String("comp", comp), zap.String("stage", "start"), fileField(fileID))
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// Warn 记录非致命事件（例如规则因标记缺失被跳过）。
func (l *Logger) Warn(comp, code, msg, fileID string, kv map[string]string) {
	l.log(zapcore.WarnLevel, msg, zap.String("comp", comp), zap.String("stage", "skip"), zap.String("code", code), fileField(fileID), kvField(kv))
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time, err error) {
	l.ErrorWith(comp, code, msg, durSince, "", err)
}

// ErrorWith 支持 file_id。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID string, err error) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	fields := []zap.Field{zap.String("comp", comp), zap.String("stage", "error"), zap.String("code", code), zap.Int64("dur_ms", dur), fileField(fileID)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.log(zapcore.ErrorLevel, msg, fields...)
}

// Debug 输出调试事件（仅在 level=debug 时生效）。
func (l *Logger) Debug(comp, msg, fileID string, kv map[string]string) {
	l.log(zapcore.DebugLevel, msg, zap.String("comp", comp), zap.String("stage", "debug"), fileField(fileID), kvField(kv))
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	t0     time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	t.l.log(zapcore.InfoLevel, msg,
		zap.String("comp", t.comp), zap.String("stage", "finish"),
		zap.Int64("dur_ms", time.Since(t.t0).Milliseconds()), zap.Int64("count", count), fileField(t.fileID))
	ObserveDuration(t.comp, "finish", time.Since(t.t0).Milliseconds())
}

func fileField(id string) zap.Field {
	if id == "" {
		return zap.Skip()
	}
	return zap.String("file_id", id)
}

func kvField(kv map[string]string) zap.Field {
	if len(kv) == 0 {
		return zap.Skip()
	}
	return zap.Any("kv", kv)
}
