package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logDir      = "/var/log/automaprint"
	logFileName = "automaprint.log"
)

// LineFunc receives every rendered log line. The GUI front end (out of
// tree) registers one to mirror agent output; it must not block.
type LineFunc func(line string)

type zerologEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type callbackWriter struct {
	fn LineFunc
}

// InitLogger configures the global zerolog logger with file rotation and
// console formatting. An optional line callback receives every log line.
func InitLogger(lineFn LineFunc) *lumberjack.Logger {
	fileName := fmt.Sprintf("%s/%s", logDir, logFileName)
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		fileName = logFileName
	}

	logRotate := &lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    10, // Max size in MB before rotation
		MaxBackups: 3,
		MaxAge:     30, // Max age in days
		Compress:   true,
	}

	writers := []io.Writer{
		PrettyWriter(os.Stderr),
		PrettyWriter(logRotate),
	}
	if lineFn != nil {
		writers = append(writers, &callbackWriter{fn: lineFn})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	return logRotate
}

// PrettyWriter returns a zerolog.ConsoleWriter with the agent's line format.
func PrettyWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:          out,
		NoColor:      true,
		TimeFormat:   time.RFC3339,
		TimeLocation: time.Local,
		FormatLevel: func(i interface{}) string {
			return "[" + strings.ToUpper(fmt.Sprint(i)) + "]"
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprint(i)
		},
		FormatFieldName: func(i interface{}) string {
			return "(" + fmt.Sprint(i) + ")"
		},
		FormatFieldValue: func(i interface{}) string {
			return fmt.Sprint(i)
		},
	}
}

// Note: Always return nil error to avoid zerolog internal error logs
func (w *callbackWriter) Write(p []byte) (n int, err error) {
	n = len(p)

	var entry zerologEntry
	if err := json.Unmarshal(p, &entry); err != nil {
		return n, nil
	}
	if entry.Message == "" {
		return n, nil
	}

	w.fn(entry.Message)
	return n, nil
}
