package main

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *zap.Logger
var sugar *zap.SugaredLogger

// setLogger configures the global zap logger, optionally teeing into a
// rotated log file.
func setLogger(debug bool, logfile string) {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		level,
	)

	core := consoleCore
	if logfile != "" {
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   logfile,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		})
		fileCfg := zap.NewProductionEncoderConfig()
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), w, level)
		core = zapcore.NewTee(consoleCore, fileCore)
	}

	logger = zap.New(core)
	sugar = logger.Sugar()
}
