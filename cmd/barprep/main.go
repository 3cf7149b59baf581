package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/conorfennell/barprep/internal/config"
	"github.com/conorfennell/barprep/internal/domain"
	"github.com/conorfennell/barprep/internal/gitsource"
	"github.com/conorfennell/barprep/internal/progress"
	"github.com/conorfennell/barprep/internal/scheduler"
	"github.com/conorfennell/barprep/internal/sm2"
	"github.com/conorfennell/barprep/internal/storage"
	"github.com/conorfennell/barprep/internal/study"
	"github.com/conorfennell/barprep/internal/sync"
)

const usage = `Usage: barprep <command> [flags] [args]

Commands:
  add-source <path|url>    Register a local deck directory or git repository
  remove-source <path|url> Unregister a source and delete its cards
  sync                     Pull git sources and reconcile cards with the decks
  due                      List cards due for review, in study order
  review <hash> <quality>  Grade recall of a card from 0 (blackout) to 5 (perfect)
  report                   Show statistics, streak, weak subjects and readiness

Run 'barprep <command> --help' for flags.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "barprep: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(stdout, usage)
		return nil
	}
	cmd, args := args[0], args[1:]

	fs := config.Flags("barprep " + cmd)
	fs.SetOutput(stderr)
	limit := fs.Int("limit", 20, "Maximum number of due cards to list (0 for all)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.Log, stderr)
	slog.SetDefault(logger)

	db, err := storage.Open(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Debug("database opened", "path", cfg.DB.Path)

	svc := study.NewService(db, newScheduler(cfg.Scheduler), newAnalyzer(cfg.Analyzer), study.WithLogger(logger))

	switch cmd {
	case "add-source":
		if fs.NArg() != 1 {
			return errors.New("add-source takes exactly one path or URL")
		}
		id, err := sync.AddSource(ctx, db, fs.Arg(0))
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Added source %d: %s\n", id, fs.Arg(0))
		return nil

	case "remove-source":
		if fs.NArg() != 1 {
			return errors.New("remove-source takes exactly one path or URL")
		}
		if err := sync.RemoveSource(ctx, db, fs.Arg(0)); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Removed source %s\n", fs.Arg(0))
		return nil

	case "sync":
		syncer := &sync.Syncer{
			Store:    db,
			Git:      &gitsource.Syncer{Logger: logger, Progress: stderr},
			ReposDir: cfg.Sources.ReposDir,
			Logger:   logger,
		}
		report, err := syncer.RunSync(ctx)
		if err != nil {
			return err
		}
		printSync(stdout, report)
		return nil

	case "due":
		cards, err := svc.Queue(ctx, cfg.User.ID, *limit)
		if err != nil {
			return err
		}
		printQueue(stdout, cards)
		return nil

	case "review":
		if fs.NArg() != 2 {
			return errors.New("review takes a card hash and a quality from 0 to 5")
		}
		q, err := strconv.Atoi(fs.Arg(1))
		if err != nil {
			return fmt.Errorf("failed to parse quality %q: %w", fs.Arg(1), err)
		}
		card, err := svc.Review(ctx, cfg.User.ID, fs.Arg(0), domain.Quality(q))
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Next review %s (in %s), easiness %.2f\n",
			humanize.Time(*card.State.NextReviewDate),
			sm2.IntervalLabel(card.State.Interval),
			card.State.EasinessFactor)
		return nil

	case "report":
		examDate, _, err := cfg.ExamDate(time.Local)
		if err != nil {
			return err
		}
		r, err := svc.Report(ctx, cfg.User.ID, examDate)
		if err != nil {
			return err
		}
		printReport(stdout, r)
		return nil
	}

	return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
}

func newScheduler(cfg config.SchedulerConfig) *scheduler.Scheduler {
	params := sm2.DefaultParams()
	params.MinEasinessFactor = cfg.MinEasiness
	params.SecondInterval = cfg.SecondInterval

	s := scheduler.New(params)
	s.MatureInterval = cfg.MatureInterval
	return s
}

func newAnalyzer(cfg config.AnalyzerConfig) *progress.Analyzer {
	return &progress.Analyzer{
		WeakThreshold:    cfg.WeakThreshold,
		HighWorkload:     cfg.HighWorkload,
		LowRetention:     cfg.LowRetention,
		LowEasiness:      cfg.LowEasiness,
		MaxFocusSubjects: cfg.MaxFocusSubjects,
	}
}

func printSync(w io.Writer, r sync.Report) {
	fmt.Fprintf(w, "Synced %d %s: %d parsed, %d added, %d updated, %d removed.\n",
		r.Sources, pluralize(r.Sources, "source"), r.Parsed, r.Added, r.Updated, r.Removed)
	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "\n%d errors:\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(w, "- %s\n", e)
		}
	}
}

func printQueue(w io.Writer, cards []domain.ScheduledCard) {
	if len(cards) == 0 {
		fmt.Fprintln(w, "Nothing due. Come back later.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HASH\tSUBJECT\tDUE\tQUESTION")
	for _, c := range cards {
		due := "new"
		if !c.State.IsNew() {
			due = humanize.Time(*c.State.NextReviewDate)
		}
		subject := c.Subject
		if subject == "" {
			subject = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Hash, subject, due, firstLine(c.Question))
	}
	tw.Flush()
}

func printReport(w io.Writer, r study.Report) {
	st := r.Statistics
	fmt.Fprintf(w, "Cards: %s total, %s due\n", humanize.Comma(int64(st.Total)), humanize.Comma(int64(st.Due)))
	fmt.Fprintf(w, "  new %d, young %d, mature %d\n", st.New, st.Young, st.Mature)
	fmt.Fprintf(w, "Retention: %.0f%%  Average easiness: %.2f\n", st.RetentionRate, st.AverageEasiness)
	fmt.Fprintf(w, "Streak: %d %s (longest %d)\n", r.Streak.Current, pluralize(r.Streak.Current, "day"), r.Streak.Longest)

	if len(r.Subjects) > 0 {
		fmt.Fprintln(w, "\nSubjects:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, s := range r.Subjects {
			fmt.Fprintf(tw, "  %s\t%.0f%%\t%d/%d\n", s.Subject, s.Accuracy, s.Correct, s.Reviews)
		}
		tw.Flush()
	}

	if r.Readiness != nil {
		rd := r.Readiness
		fmt.Fprintf(w, "\nExam in %d %s: %s (confidence %d%%)\n",
			r.DaysUntilExam, pluralize(r.DaysUntilExam, "day"), rd.Level, rd.Confidence)
		fmt.Fprintf(w, "  maturity %.0f%%, study %d cards a day\n", rd.MaturityRate, rd.RecommendedDailyCards)
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "  [%s] %s\n", rec.Priority, rec.Message)
		}
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func pluralize(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
