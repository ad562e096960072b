package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	backendFile   = "file"
	backendSQLite = "sqlite"
	backendMongo  = "mongo"
)

type config struct {
	backend   string
	dbPath    string
	mongoURL  string
	mongoDB   string
	addr      string
	logPath   string
	reconcile time.Duration
}

const usage = `Usage: knjiznica [flags]

Flags:
  -b, -backend <name>     storage backend: file, sqlite or mongo (env BACKEND, default: sqlite)
  -d, -db <path>          database or JSON file path (env DB_PATH, default: knjiznica.sqlite3
                          for sqlite, knjiznica.json for file)
  -m, -mongo-url <uri>    MongoDB connection string (env MONGO_URL, default: mongodb://localhost:27017)
      -mongo-db <name>    MongoDB database name (env MONGO_DB, default: knjiznica)
  -a, -addr <host:port>   listen address (env ADDR, default: :4000)
  -l, -log <path>         log file path (env LOG_PATH, default: stdout/stderr only)
  -r, -reconcile <dur>    interval between loan record checks, 0 disables (env RECONCILE, default: 0)
  -h, -help               show this help and exit

Environment variables may also be set in a .env file in the working directory.
`

// parseConfig parses args with defaults taken from getenv.
func parseConfig(args []string, getenv func(string) string, out io.Writer) (*config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	reconcileDefault := time.Duration(0)
	if v := getenv("RECONCILE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parsing RECONCILE: %w", err)
		}
		reconcileDefault = d
	}

	fs := flag.NewFlagSet("knjiznica", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }

	var cfg config
	fs.StringVar(&cfg.backend, "backend", env("BACKEND", backendSQLite), "")
	fs.StringVar(&cfg.backend, "b", env("BACKEND", backendSQLite), "")
	fs.StringVar(&cfg.dbPath, "db", getenv("DB_PATH"), "")
	fs.StringVar(&cfg.dbPath, "d", getenv("DB_PATH"), "")
	fs.StringVar(&cfg.mongoURL, "mongo-url", env("MONGO_URL", "mongodb://localhost:27017"), "")
	fs.StringVar(&cfg.mongoURL, "m", env("MONGO_URL", "mongodb://localhost:27017"), "")
	fs.StringVar(&cfg.mongoDB, "mongo-db", env("MONGO_DB", "knjiznica"), "")
	fs.StringVar(&cfg.addr, "addr", env("ADDR", ":4000"), "")
	fs.StringVar(&cfg.addr, "a", env("ADDR", ":4000"), "")
	fs.StringVar(&cfg.logPath, "log", getenv("LOG_PATH"), "")
	fs.StringVar(&cfg.logPath, "l", getenv("LOG_PATH"), "")
	fs.DurationVar(&cfg.reconcile, "reconcile", reconcileDefault, "")
	fs.DurationVar(&cfg.reconcile, "r", reconcileDefault, "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	switch cfg.backend {
	case backendSQLite:
		if cfg.dbPath == "" {
			cfg.dbPath = "knjiznica.sqlite3"
		}
	case backendFile:
		if cfg.dbPath == "" {
			cfg.dbPath = "knjiznica.json"
		}
	case backendMongo:
		if cfg.mongoURL == "" || cfg.mongoDB == "" {
			return nil, errors.New("mongo backend needs -mongo-url and -mongo-db")
		}
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.backend)
	}
	if cfg.reconcile < 0 {
		return nil, fmt.Errorf("negative reconcile interval %s", cfg.reconcile)
	}

	return &cfg, nil
}

// envLookup returns getenv for the process environment after loading .env,
// if present. Variables already set take precedence over the file.
func envLookup(dotenv string) (func(string) string, error) {
	if _, err := os.Stat(dotenv); err == nil {
		if err := godotenv.Load(dotenv); err != nil {
			return nil, fmt.Errorf("loading %s: %w", dotenv, err)
		}
	}
	return os.Getenv, nil
}
