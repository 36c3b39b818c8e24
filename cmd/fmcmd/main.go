package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kriansa/fmcmd/internal/blockdev"
	"github.com/kriansa/fmcmd/internal/commands"
	"github.com/kriansa/fmcmd/internal/config"
	"github.com/kriansa/fmcmd/internal/dbusconn"
	"github.com/kriansa/fmcmd/internal/finder"
	"github.com/kriansa/fmcmd/internal/log"
	"github.com/kriansa/fmcmd/internal/mountsel"
	"github.com/kriansa/fmcmd/internal/notify"
	"github.com/kriansa/fmcmd/internal/udisks"
	"github.com/kriansa/fmcmd/internal/version"
)

func main() {
	cmd := newApp()

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			if !exitErr.Reported {
				fmt.Fprintf(os.Stderr, "error: %v\n", exitErr.Err)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	cmd := &cli.Command{
		Name:  "fmcmd",
		Usage: "File-manager commands: edit, trash, mkcd, fzf jump and interactive disk mounting",
		// File names may contain commas; each --selection is one file
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file path",
				Value:   config.DefaultPath(),
				Sources: cli.EnvVars("FMCMD_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("FMCMD_VERBOSE"),
			},
			&cli.StringFlag{
				Name:    "backend",
				Aliases: []string{"b"},
				Usage:   "Mount backend: cli (udisksctl) or dbus (UDisks2)",
				Sources: cli.EnvVars("FMCMD_BACKEND"),
			},
			&cli.StringFlag{
				Name:    "notify",
				Usage:   "Notification target: terminal or desktop",
				Sources: cli.EnvVars("FMCMD_NOTIFY"),
			},
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"C"},
				Usage:   "Directory the command runs in (default: working directory)",
			},
			&cli.StringSliceFlag{
				Name:    "selection",
				Aliases: []string{"s"},
				Usage:   "Selected file, repeatable; the first one is under the cursor",
			},
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"V"},
				Usage:   "Print version information",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("version") {
				fmt.Println(version.String())
				return nil
			}
			return cli.ShowAppHelp(cmd)
		},
	}

	// Names and usage do not depend on runtime dependencies, so an empty
	// catalog is enough to describe the subcommands.
	catalog := commands.NewRegistry()
	registerCommands(catalog, &deps{cfg: &config.Config{}})

	for _, name := range catalog.Names() {
		c, _ := catalog.Lookup(name)
		cmd.Commands = append(cmd.Commands, &cli.Command{
			Name:            name,
			Usage:           c.Usage(),
			SkipFlagParsing: true,
			Action: func(ctx context.Context, sub *cli.Command) error {
				return runCommand(ctx, sub, func(r *commands.Registry, env commands.Env) (commands.Result, error) {
					return r.Execute(ctx, name, env, sub.Args().Slice())
				})
			},
		})
	}

	cmd.Commands = append(cmd.Commands, &cli.Command{
		Name:            "run",
		Usage:           "Run a command line, e.g. run 'mkcd \"new dir\"'",
		ArgsUsage:       "<command line>",
		SkipFlagParsing: true,
		Action: func(ctx context.Context, sub *cli.Command) error {
			line := strings.Join(sub.Args().Slice(), " ")
			return runCommand(ctx, sub, func(r *commands.Registry, env commands.Env) (commands.Result, error) {
				return r.ExecuteLine(ctx, env, line)
			})
		},
	})

	return cmd
}

// deps are the components commands are built from
type deps struct {
	cfg      *config.Config
	lister   blockdev.Lister
	finder   finder.Finder
	selector *mountsel.Selector
	notifier notify.Notifier
	editor   []string
}

func registerCommands(r *commands.Registry, d *deps) {
	r.Register(commands.NewEdit(d.editor, d.notifier))
	r.Register(commands.NewTrash(d.cfg.Trash, d.notifier))
	r.Register(commands.NewMkcd())
	r.Register(commands.NewFzfSelect(d.finder, d.cfg.Preview))
	r.Register(commands.NewMountSelect(d.lister, d.selector, d.notifier, commands.WithRemovableOnly(d.cfg.RemovableOnly)))
	r.Register(commands.NewUnmountSelect(d.lister, d.selector, d.notifier))
}

// runCommand builds the components from the global flags, runs exec and prints
// the result for the calling shell
func runCommand(
	ctx context.Context,
	cmd *cli.Command,
	exec func(*commands.Registry, commands.Env) (commands.Result, error),
) error {
	// Setup logging
	log.Setup(cmd.Bool("verbose"))

	// Load config file
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Merge CLI flags (CLI takes precedence)
	cfg.Merge(cmd.String("backend"), cmd.String("notify"))

	// Apply defaults
	cfg.ApplyDefaults()

	// Validate config
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	env, err := newEnv(cmd.String("dir"), cmd.StringSlice("selection"))
	if err != nil {
		return err
	}

	log.Debug("starting command",
		"command", cmd.Name,
		"dir", env.Dir,
		"backend", cfg.Backend,
		"notify", cfg.Notify,
	)

	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := exec(s.registry, env)
	if err != nil {
		return toExitError(err)
	}

	out := cmd.Root().Writer
	if res.Dir != "" {
		fmt.Fprintln(out, res.Dir)
	}
	if res.Selected != "" {
		fmt.Fprintln(out, res.Selected)
	}
	return nil
}

func newEnv(dir string, selection []string) (commands.Env, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return commands.Env{}, fmt.Errorf("get working directory: %w", err)
		}
		dir = wd
	}
	return commands.Env{Dir: dir, Selection: selection}, nil
}

// session owns the components built for one invocation
type session struct {
	registry *commands.Registry
	closers  []func() error
}

func newSession(cfg *config.Config) (*session, error) {
	sess := &session{registry: commands.NewRegistry()}

	notifier := notify.Notifier(notify.NewTerminal(os.Stderr))
	if cfg.Notify == "desktop" {
		conn, err := dbusconn.ConnectSessionBus()
		if err != nil {
			log.Warn("desktop notifications unavailable, using terminal", "error", err)
		} else {
			desktop := notify.NewDesktop(conn, notifier)
			sess.closers = append(sess.closers, desktop.Close)
			notifier = desktop
		}
	}

	// Connecting to the system bus is deferred to first use so commands
	// unrelated to mounting work without DBus.
	actuator := &lazyActuator{backend: cfg.Backend, udisksctl: cfg.Udisksctl}
	sess.closers = append(sess.closers, actuator.Close)

	editor, err := cfg.EditorCommand()
	if err != nil {
		sess.Close()
		return nil, err
	}

	f := finder.NewFzfFinder(cfg.Fzf)
	registerCommands(sess.registry, &deps{
		cfg:      cfg,
		lister:   blockdev.NewLsblkLister(cfg.Lsblk),
		finder:   f,
		selector: mountsel.NewSelector(f, actuator),
		notifier: notifier,
		editor:   editor,
	})

	return sess, nil
}

func (sess *session) Close() {
	for _, closeFn := range sess.closers {
		if err := closeFn(); err != nil {
			log.Warn("failed to release resource", "error", err)
		}
	}
}

// lazyActuator creates the configured backend on first use
type lazyActuator struct {
	backend   string
	udisksctl string
	actuator  udisks.Actuator
}

func (a *lazyActuator) Actuate(ctx context.Context, action udisks.Action, device string) (string, error) {
	if a.actuator == nil {
		actuator, err := udisks.NewActuator(a.backend, a.udisksctl)
		if err != nil {
			return "", &udisks.ActuationError{Action: action, Device: device, ExitCode: udisks.ExitFailure, Err: err}
		}
		a.actuator = actuator
	}
	return a.actuator.Actuate(ctx, action, device)
}

func (a *lazyActuator) Close() error {
	if a.actuator == nil {
		return nil
	}
	return a.actuator.Close()
}
