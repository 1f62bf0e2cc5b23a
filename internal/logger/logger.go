package logger

import (
	"io"
	"os"
	"strings"

	"kobonz/internal/config"

	"github.com/sirupsen/logrus"
)

// Logger обёртка над logrus с настройкой из конфигурации
type Logger struct {
	*logrus.Logger
}

// New создаёт логгер: уровень, формат (json|text) и вывод в файл, если он задан
func New(cfg *config.LoggerConfig) *Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.Format, "text") {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.WithError(err).WithField("file", cfg.File).Warn("Failed to open log file, using stdout")
		} else {
			out = file
		}
	}
	log.SetOutput(out)

	return &Logger{Logger: log}
}
