package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the process-wide logger. Components should prefer
	// ComponentLogger or an injected *zap.SugaredLogger.
	Logger *zap.SugaredLogger
	// JSONOutput records whether Logger emits JSON
	JSONOutput bool
)

func init() {
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger for CLI and server use.
// Everything goes to stderr so report bytes written to stdout stay clean.
func Initialize(jsonOutput bool, level zapcore.Level) error {
	l, err := build(jsonOutput, level, "stderr")
	if err != nil {
		return err
	}
	Logger, JSONOutput = l.Sugar(), jsonOutput
	return nil
}

// InitializeForLambda sets up the global logger inside a Lambda runtime.
//
// In a real deployment (see onLambda) it logs JSON at WARN and above to
// stdout, which CloudWatch ingests line by line. Local invocations get the
// console encoder at INFO.
func InitializeForLambda() error {
	deployed := onLambda()
	level := zapcore.InfoLevel
	if deployed {
		level = zapcore.WarnLevel
	}

	l, err := build(deployed, level, "stdout")
	if err != nil {
		return err
	}
	Logger, JSONOutput = l.Sugar(), deployed

	Logger.Infow("Lambda logger initialized", "deployed", deployed)
	return nil
}

func build(jsonOutput bool, level zapcore.Level, sink string) (*zap.Logger, error) {
	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.OutputPaths = []string{sink}
		cfg.ErrorOutputPaths = []string{"stderr"}
		return cfg.Build()
	}

	out := zapcore.Lock(os.Stderr)
	if sink == "stdout" {
		out = zapcore.Lock(os.Stdout)
	}
	return zap.New(zapcore.NewCore(consoleEncoder(), out, level)), nil
}

func consoleEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cfg.CallerKey = ""
	cfg.StacktraceKey = ""
	return zapcore.NewConsoleEncoder(cfg)
}

// onLambda reports whether the process runs in a deployed Lambda, or was
// told to behave like one through ENVIRONMENT or LOG_LEVEL
func onLambda() bool {
	if os.Getenv("AWS_EXECUTION_ENV") != "" {
		return true
	}
	switch strings.ToLower(os.Getenv("ENVIRONMENT")) {
	case "production", "prod":
		return true
	}
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "WARN", "ERROR":
		return true
	}
	return false
}

// Cleanup flushes any buffered log entries
func Cleanup() {
	_ = Logger.Sync()
}

func Infow(msg string, keysAndValues ...interface{})  { Logger.Infow(msg, keysAndValues...) }
func Warnw(msg string, keysAndValues ...interface{})  { Logger.Warnw(msg, keysAndValues...) }
func Errorw(msg string, keysAndValues ...interface{}) { Logger.Errorw(msg, keysAndValues...) }
func Debugw(msg string, keysAndValues ...interface{}) { Logger.Debugw(msg, keysAndValues...) }
