package logger

import (
	"os"

	"github.com/morganhein/netsync/schema"
	"github.com/op/go-logging"
)

const module = "netsync"

var Log schema.Logger

var leveled logging.LeveledBackend

func init() {
	format := logging.MustStringFormatter(
		`%{color}%{time:15:04:05.000} %{shortfile} %{shortfunc} ▶ %{level:.4s} %{id:03x}%{color:reset} %{message}`,
	)

	Log = logging.MustGetLogger(module)
	backend := logging.NewLogBackend(os.Stderr, "", 0)

	backendFormatter := logging.NewBackendFormatter(backend, format)
	leveled = logging.AddModuleLevel(backendFormatter)
	leveled.SetLevel(logging.INFO, module)

	logging.SetBackend(leveled)
}

// SetLevel changes the verbosity, e.g. "debug", "info", "warning". Unknown levels are an error.
func SetLevel(level string) error {
	l, err := logging.LogLevel(level)
	if err != nil {
		return err
	}
	leveled.SetLevel(l, module)
	return nil
}
