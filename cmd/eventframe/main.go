package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ivlev/eventframe/internal/config"
)

const usage = `eventframe вставляет фото участника в шаблон мероприятия.

Использование:
  eventframe render [флаги]   экспорт одной композиции в файл
  eventframe serve [флаги]    запуск HTTP API

Флаги команды: "eventframe <команда> -h".
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "render":
		err = runRender(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "[-] Неизвестная команда %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("[-] %v", err)
	}
}

// loadConfig applies the config file, .env and environment, in that order.
// Flags are applied by the caller afterwards.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// flagSet returns a FlagSet carrying the flags shared by every command.
func flagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "eventframe.yaml", "Путь к YAML-конфигу (необязательно)")
	return fs, configPath
}

// setFlags reports which flags were given explicitly.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}
