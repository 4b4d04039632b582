/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Logger = logrus.Logger

const defaultTimestampFormat = "2006-01-02 15:04:05.000"

var (
	registryMu     sync.RWMutex
	loggerRegistry = map[string]*logrus.Logger{}

	outputMu      sync.RWMutex
	consoleOutput io.Writer = os.Stdout

	baseLevel        = ParseLogLevel(EnvDefaultString("LOG_LEVEL", "info"))
	consoleLogFormat = EnvDefaultString("CONSOLE_LOG_FORMAT", "text")
	consoleColor     = EnvDefaultBool("CONSOLE_LOG_COLOR", true)
)

// ConfigureConsoleLogFormat switches new loggers between "text" and "json".
func ConfigureConsoleLogFormat(format string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		consoleLogFormat = "json"
	} else {
		consoleLogFormat = "text"
	}
	for name, lg := range loggerRegistry {
		lg.SetFormatter(newFormatter(name))
	}
}

// ConfigureOutput redirects every named logger, e.g. to a buffer in tests.
func ConfigureOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	outputMu.Lock()
	consoleOutput = w
	outputMu.Unlock()
}

func currentOutput() io.Writer {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return consoleOutput
}

func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// ConfigureLogLevel sets the level of every registered logger and of loggers
// created afterwards.
func ConfigureLogLevel(levelStr string) {
	lvl := ParseLogLevel(levelStr)
	registryMu.Lock()
	defer registryMu.Unlock()
	baseLevel = lvl
	for _, lg := range loggerRegistry {
		lg.SetLevel(lvl)
	}
	logrus.SetLevel(lvl)
}

// SetLoggerLevel changes one named logger. It reports false for unknown names.
func SetLoggerLevel(name string, lvlStr string) bool {
	registryMu.RLock()
	lg, ok := loggerRegistry[name]
	registryMu.RUnlock()
	if !ok {
		return false
	}
	lg.SetLevel(ParseLogLevel(lvlStr))
	return true
}

type consoleWriter struct{}

func (consoleWriter) Write(p []byte) (int, error) { return currentOutput().Write(p) }

// NewLogger returns the named logger, creating and registering it on first use.
func NewLogger(name string) *logrus.Logger {
	registryMu.Lock()
	defer registryMu.Unlock()
	if lg, ok := loggerRegistry[name]; ok {
		return lg
	}
	l := logrus.New()
	l.SetOutput(consoleWriter{})
	l.SetLevel(baseLevel)
	l.SetReportCaller(true)
	l.SetFormatter(newFormatter(name))
	loggerRegistry[name] = l
	return l
}

func newFormatter(name string) logrus.Formatter {
	if consoleLogFormat == "json" {
		return &JSONLogFormatter{LoggerName: name}
	}
	return &Log4jColorFormatter{LoggerName: name, Color: consoleColor, NameWidth: 10, CallerWidth: 25}
}

// Log4jColorFormatter renders "time LEVEL pid - [main] name caller : msg k=v".
type Log4jColorFormatter struct {
	LoggerName      string
	TimestampFormat string
	Color           bool
	NameWidth       int
	CallerWidth     int
}

func (f *Log4jColorFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	tsFormat := f.TimestampFormat
	if tsFormat == "" {
		tsFormat = defaultTimestampFormat
	}
	paint := func(s, code string) string {
		if !f.Color {
			return s
		}
		return code + s + ansiReset
	}

	var b strings.Builder
	b.WriteString(entry.Time.Format(tsFormat))
	b.WriteByte(' ')
	b.WriteString(paint(fmt.Sprintf("%7s", strings.ToUpper(entry.Level.String())), levelColor(entry.Level)))
	b.WriteByte(' ')
	b.WriteString(paint(fmt.Sprintf("%-6d", os.Getpid()), ansiMagenta))
	b.WriteString(" - ")
	b.WriteString(paint("[main]", ansiMagenta))
	b.WriteByte(' ')
	b.WriteString(paint(padLeftRunes(limitRunes(f.LoggerName, f.NameWidth), f.NameWidth), ansiCyan))
	if entry.Caller != nil {
		caller := shortCaller(entry.Caller.File, entry.Caller.Line)
		b.WriteString(paint(" "+padLeftRunes(limitRunes(caller, f.CallerWidth), f.CallerWidth), ansiFaint))
	}
	b.WriteString(paint(" :", ansiFaint))
	b.WriteByte(' ')
	b.WriteString(entry.Message)
	for _, k := range sortedKeys(entry.Data) {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// JSONLogFormatter renders one JSON object per line.
type JSONLogFormatter struct {
	LoggerName      string
	TimestampFormat string
}

func (f *JSONLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	tsFormat := f.TimestampFormat
	if tsFormat == "" {
		tsFormat = defaultTimestampFormat
	}
	rec := struct {
		Time    string                 `json:"time"`
		Level   string                 `json:"level"`
		Model   string                 `json:"model"`
		Caller  string                 `json:"caller,omitempty"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields,omitempty"`
	}{
		Time:    entry.Time.Format(tsFormat),
		Level:   strings.ToLower(entry.Level.String()),
		Model:   f.LoggerName,
		Message: entry.Message,
	}
	if entry.Caller != nil {
		rec.Caller = shortCaller(entry.Caller.File, entry.Caller.Line)
	}
	if len(entry.Data) > 0 {
		rec.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			rec.Fields[k] = v
		}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

const (
	ansiReset   = "\x1b[0m"
	ansiFaint   = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiYellow  = "\x1b[33m"
	ansiGreen   = "\x1b[32m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

func levelColor(level logrus.Level) string {
	switch level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return ansiRed
	case logrus.WarnLevel:
		return ansiYellow
	case logrus.InfoLevel:
		return ansiGreen
	case logrus.DebugLevel:
		return ansiBlue
	default:
		return ansiMagenta
	}
}

// shortCaller keeps the parent directory and file name, e.g. "repository/base.go:42".
func shortCaller(file string, line int) string {
	parts := strings.Split(filepath.ToSlash(file), "/")
	if len(parts) >= 2 {
		parts = parts[len(parts)-2:]
	}
	return strings.Join(parts, "/") + ":" + strconv.Itoa(line)
}

func sortedKeys(m logrus.Fields) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func limitRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func padLeftRunes(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(r)) + s
}

func EnvDefaultString(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	return def
}

func EnvDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return def
		}
		return n
	}
	return def
}

// EnvDefaultDuration accepts Go durations ("5s") or plain seconds ("5").
func EnvDefaultDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
