// cmd/modmigrate/main.go
//
// Entry point for the modmigrate CLI.
//
//	modmigrate migrate [--project DIR] [--load] [--tui]
//	modmigrate check   [--project DIR]
//	modmigrate report  [--project DIR]
//
// migrate loads every module descriptor below the project, gives each module
// a fresh identity and rewires the project to it.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/modmigrate/internal/config"
	"github.com/kingrea/modmigrate/internal/loader"
	"github.com/kingrea/modmigrate/internal/logbook"
	"github.com/kingrea/modmigrate/internal/migrate"
	"github.com/kingrea/modmigrate/internal/project"
	"github.com/kingrea/modmigrate/internal/report"
	"github.com/kingrea/modmigrate/internal/storage"
	"github.com/kingrea/modmigrate/internal/template"
	"github.com/kingrea/modmigrate/internal/tui"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
)

const usage = `usage: modmigrate <command> [flags]

commands:
  migrate   give every module of the project a fresh identity
  check     report module layouts the migration does not support
  report    show the last recorded run`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	switch os.Args[1] {
	case "migrate":
		runMigrate(os.Args[2:])
	case "check":
		runCheck(os.Args[2:])
	case "report":
		runReport(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Println(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s\n", os.Args[1], usage)
		os.Exit(2)
	}
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	projectDir := fs.String("project", "", "path to the project directory (defaults to cwd)")
	async := fs.Bool("load", false, "load modules through the background loader and wait for all of them")
	showTUI := fs.Bool("tui", false, "show a progress view while migrating")
	_ = fs.Parse(args)

	root := resolveProject(*projectDir)
	cfg := loadConfig(root)

	var mirror []logbook.Option
	if !*showTUI {
		mirror = append(mirror, logbook.WithMirror(os.Stderr))
	}
	book, err := logbook.New(cfg.LogPath(), mirror...)
	if err != nil {
		die("open log: %v", err)
	}
	defer book.Close()
	store, err := storage.New(root)
	if err != nil {
		die("open storage: %v", err)
	}

	findings, err := template.Check(root)
	if err != nil {
		die("check project: %v", err)
	}
	if len(findings) > 0 {
		for _, f := range findings {
			book.Error("%s", f)
		}
		die("project layout is not supported, run `modmigrate check` for details")
	}

	paths, err := template.MinePaths(root, cfg.IgnorePatterns())
	if err != nil {
		die("find modules: %v", err)
	}
	if len(paths) == 0 {
		die("no modules found below %s", root)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := project.New(filepath.Base(root), root)
	ld := loader.New(p, store, loader.WithWorkers(cfg.LoaderWorkers()), loader.WithLogger(book))
	if *async {
		err = loadAsync(ctx, ld, paths, book)
	} else {
		err = loadSync(p, store, paths)
	}
	if err != nil {
		die("load modules: %v", err)
	}
	assignFolders(p, root)
	book.Info("loaded %d modules from %s", len(p.Modules()), root)

	opts := []migrate.Option{
		migrate.WithLoader(ld),
		migrate.WithLogger(book),
		migrate.WithCloneSuffix(cfg.CloneSuffix()),
	}
	var rep migrate.Report
	if *showTUI {
		feed := tui.NewFeed()
		eng := migrate.New(p, store, append(opts, migrate.WithObserver(feed.Observe))...)
		go func() {
			r, runErr := eng.Run(ctx)
			feed.Finish(r, runErr)
		}()
		result, done, tuiErr := tui.Run(feed, book)
		if tuiErr != nil {
			die("%v", tuiErr)
		}
		if !done {
			stop()
			fmt.Fprintln(os.Stderr, warnStyle.Render("progress view closed, migration cancelled"))
			os.Exit(1)
		}
		rep, err = result.Report, result.Err
	} else {
		rep, err = migrate.New(p, store, opts...).Run(ctx)
	}
	ld.Wait()

	run := rep.Record()
	if cfg.KeepReport() {
		if saveErr := report.NewRepository(cfg.ReportPath()).Save(run); saveErr != nil {
			book.Error("could not save run report: %v", saveErr)
		}
	}
	fmt.Print(tui.RenderRun(run))
	if err != nil {
		die("migration did not finish: %v", err)
	}
	if len(rep.Failures) > 0 {
		os.Exit(1)
	}
	fmt.Println(okStyle.Render("✓ migration complete"))
}

func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	projectDir := fs.String("project", "", "path to the project directory (defaults to cwd)")
	_ = fs.Parse(args)

	root := resolveProject(*projectDir)
	findings, err := template.Check(root)
	if err != nil {
		die("check project: %v", err)
	}
	if len(findings) == 0 {
		fmt.Println(okStyle.Render("✓ no unsupported layouts"))
		return
	}
	for _, f := range findings {
		fmt.Printf("%s %s\n", warnStyle.Render("!"), f)
	}
	os.Exit(1)
}

func runReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	projectDir := fs.String("project", "", "path to the project directory (defaults to cwd)")
	_ = fs.Parse(args)

	root := resolveProject(*projectDir)
	cfg := loadConfig(root)
	run, err := report.NewRepository(cfg.ReportPath()).Load()
	if errors.Is(err, report.ErrNotFound) {
		fmt.Println("no migration has been recorded yet")
		return
	}
	if err != nil {
		die("read report: %v", err)
	}
	fmt.Print(tui.RenderRun(run))
}

// loadSync reads every descriptor in order and registers it.
func loadSync(p *project.Project, store *storage.Store, paths []string) error {
	return p.Write(func() error {
		for _, path := range paths {
			m, err := store.Load(path)
			if err != nil {
				return err
			}
			if err := p.AddModule(m); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		return nil
	})
}

// loadAsync hands paths to the background loader and blocks until each one
// was announced.
func loadAsync(ctx context.Context, ld *loader.Loader, paths []string, book *logbook.Logbook) error {
	sub := ld.Subscribe(2*len(paths) + 1)
	ld.Schedule(ctx, paths...)
	w := migrate.Await(ctx, sub, paths, book, func() error { return nil })
	<-w.Done()
	if err := w.Err(); err != nil {
		return fmt.Errorf("%w (still pending: %s)", err, strings.Join(w.Pending(), ", "))
	}
	return nil
}

// assignFolders places each module in the folder its descriptor lives in,
// relative to the project root: solutions/Sol1/Sol1.msd lands in "solutions".
func assignFolders(p *project.Project, root string) {
	for _, m := range p.Modules() {
		rel, err := filepath.Rel(root, m.Path)
		if err != nil {
			continue
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 3 {
			continue
		}
		p.SetFolderFor(m, strings.Join(parts[:len(parts)-2], "/"))
	}
}

func resolveProject(dir string) string {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			die("determine working directory: %v", err)
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		die("resolve project dir: %v", err)
	}
	return abs
}

func loadConfig(root string) *config.Config {
	if err := config.InitDir(root); err != nil {
		die("init %s: %v", config.Dir, err)
	}
	cfg, err := config.NewConfig(root)
	if err != nil {
		die("load config: %v", err)
	}
	return cfg
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
