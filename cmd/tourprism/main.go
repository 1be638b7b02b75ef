package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"tourprism/internal/api"
	"tourprism/internal/session"
	"tourprism/pkg/config"
	"tourprism/pkg/i18n"
	"tourprism/pkg/logger"
	"tourprism/pkg/storage"
)

// cliDevice is the storage namespace of the terminal client.
const cliDevice = "cli"

const usage = `usage: tourprism [-v] [-state DIR] <command> [flags]

commands:
  login          sign in with email and password (asks for the code when needed)
  signup         create an account
  logout         forget the stored session
  whoami         show the signed in user
  feed           list alerts for a city or a position
  like, flag     act on an alert by id
  post           submit a new alert
  notifications  list notifications, optionally mark them read
  bulk           upload a CSV of alerts or download the template
`

// app 终端客户端共享的依赖
type app struct {
	cfg    *config.Config
	tr     *i18n.I18nSupport
	store  storage.Store
	sess   *session.Provider
	client *api.Client
	log    *logrus.Logger
}

func main() {
	verbose := flag.Bool("v", false, "verbose logging")
	stateDir := flag.String("state", defaultStateDir(), "directory holding the local session database")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
		// 内部包用 zap，详细模式下一并打开
		if err := logger.Init(logger.LogConfig{Level: "debug"}, "debug"); err != nil {
			log.WithError(err).Warn("init internal logger")
		}
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := config.Load(); err != nil {
		log.WithError(err).Fatal("load config")
	}

	a, err := newApp(config.GlobalConfig, *stateDir, log)
	if err != nil {
		log.WithError(err).Fatal("start")
	}
	defer a.store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tourprism"
	}
	return filepath.Join(home, ".tourprism")
}

func newApp(cfg *config.Config, stateDir string, log *logrus.Logger) (*app, error) {
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	dbPath := filepath.Join(stateDir, "state.db")
	log.WithField("path", dbPath).Debug("opening local state")
	store, err := storage.NewStore(storage.Config{Driver: "sqlite", DSN: dbPath})
	if err != nil {
		return nil, err
	}
	tr, err := i18n.NewI18nSupport(cfg.LanguageDefault)
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{cfg: cfg, tr: tr, store: store, log: log}
	a.sess = session.NewProvider(storage.NewDevice(store, cliDevice))
	a.client = api.New(cfg.BackendURL).WithSession(a.sess, func(ctx context.Context) {
		log.Warn(tr.TWithDefaultLang("error.session_expired", nil))
		if err := a.sess.Clear(ctx); err != nil {
			log.WithError(err).Warn("clear session")
		}
	})
	return a, nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "signup":
		return a.signup(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "feed":
		return a.feed(ctx, args)
	case "like", "flag":
		return a.act(ctx, cmd, args)
	case "post":
		return a.post(ctx, args)
	case "notifications":
		return a.notifications(ctx, args)
	case "bulk":
		return a.bulk(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}
