package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// GwFormatter renders colored logfmt-style lines.
type GwFormatter struct{}

const (
	ansiRed    = 31
	ansiGreen  = 32
	ansiYellow = 33
	ansiBlue   = 36
	ansiGray   = 37
	ansiCyan   = 96
	ansiGold   = 93
	ansiLime   = 92
)

func levelColor(level log.Level) int {
	switch level {
	case log.TraceLevel, log.DebugLevel:
		return ansiGray
	case log.WarnLevel:
		return ansiYellow
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		return ansiRed
	default:
		return ansiBlue
	}
}

func paint(color int, s string) string {
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, s)
}

func (f *GwFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b strings.Builder
	b.WriteString(paint(ansiCyan, "level") + "=" + paint(levelColor(entry.Level), strings.ToUpper(entry.Level.String())[:4]))
	b.WriteString(" " + paint(ansiCyan, "ts") + "=" + paint(ansiGold, entry.Time.Format("2006-01-02 15:04:05.000")))

	for k, val := range entry.Data {
		encoded, err := json.Marshal(val)
		if err != nil || len(encoded) == 0 {
			continue
		}
		s := string(encoded)
		color := ansiCyan
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			color = ansiGreen
		} else if strings.HasPrefix(s, `"`) {
			color = ansiGold
		}
		b.WriteString(" " + paint(ansiCyan, k) + "=" + paint(color, s))
	}
	b.WriteString(" " + paint(ansiCyan, "msg") + "=" + paint(ansiLime, strconv.Quote(entry.Message)))

	line := strings.NewReplacer("\r", `\r`, "\n", `\n`).Replace(b.String())
	return []byte(line + "\n"), nil
}
