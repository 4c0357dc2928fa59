package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ptapal/experimental-psychology/internal/config"
	"github.com/ptapal/experimental-psychology/internal/display"
	"github.com/ptapal/experimental-psychology/internal/eval"
	"github.com/ptapal/experimental-psychology/internal/metrics"
	"github.com/ptapal/experimental-psychology/internal/rule"
	"github.com/ptapal/experimental-psychology/internal/session"
	"github.com/ptapal/experimental-psychology/internal/store"
	"github.com/ptapal/experimental-psychology/internal/terminal"
)

// #region run-cmd

type runFlags struct {
	participant   string
	label         string
	seed          uint64
	trials        int
	presenter     string
	presenterAddr string
	metricsAddr   string
}

// storedConfig is the subset of the run configuration kept with a session.
type storedConfig struct {
	Trials          int           `json:"trials"`
	StreakThreshold int           `json:"streak_threshold"`
	ResponseTimeout time.Duration `json:"response_timeout"`
	Presenter       string        `json:"presenter"`
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Administer one session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("seed") {
				cfg.Seed = f.seed
			}
			if cmd.Flags().Changed("trials") {
				cfg.Trials = f.trials
			}
			if cmd.Flags().Changed("presenter") {
				cfg.Presenter = f.presenter
			}
			if cmd.Flags().Changed("presenter-addr") {
				cfg.PresenterAddr = f.presenterAddr
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = f.metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return runSession(cmd.Context(), cfg, f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&f.participant, "participant", "p", "", "participant identifier")
	cmd.Flags().StringVar(&f.label, "label", "", "free-form session label")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "RNG seed (0 draws one)")
	cmd.Flags().IntVar(&f.trials, "trials", 0, "number of trials (overrides config)")
	cmd.Flags().StringVar(&f.presenter, "presenter", "", "terminal or remote")
	cmd.Flags().StringVar(&f.presenterAddr, "presenter-addr", "", "display server address for the remote presenter")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	_ = cmd.MarkFlagRequired("participant")
	return cmd
}

// #endregion run-cmd

// #region run-session

func runSession(parent context.Context, cfg config.Config, f runFlags, out io.Writer) error {
	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	// A throwaway engine on the same seed draws the rule the session starts on.
	initial := rule.NewEngine(cfg.RuleConfig(), session.NewRand(seed)).ActiveRule()

	stored, err := json.Marshal(storedConfig{
		Trials:          cfg.Trials,
		StreakThreshold: cfg.StreakThreshold,
		ResponseTimeout: cfg.ResponseTimeout,
		Presenter:       cfg.Presenter,
	})
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	sess, err := st.CreateSession(store.SessionInfo{
		Participant: f.participant,
		Label:       f.label,
		Seed:        seed,
		InitialRule: initial,
		ConfigJSON:  string(stored),
	})
	if err != nil {
		return err
	}
	log := logger.With(zap.String("session", sess.ID), zap.String("participant", sess.Participant))

	collab, closeIO, err := collaborators(cfg, st.Recorder(sess.ID))
	if err != nil {
		_ = st.FinishSession(sess.ID, store.StatusFailed, 0)
		return err
	}
	defer closeIO()

	m := metrics.New()
	collab.Observer = m

	runner, err := session.NewSeeded(cfg.SessionConfig(), cfg.RuleConfig(), seed, collab, session.WithLogger(log))
	if err != nil {
		_ = st.FinishSession(sess.ID, store.StatusFailed, 0)
		return err
	}
	log.Info("session created", zap.Uint64("seed", seed), zap.String("initial_rule", string(initial)))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var res session.Result
	var runErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		res, runErr = runner.Run(gctx)
		return runErr
	})
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}
	waitErr := g.Wait()

	status := store.StatusCompleted
	switch {
	case runErr != nil || (waitErr != nil && len(res.Trials) < cfg.Trials):
		status = store.StatusFailed
	case res.Aborted:
		status = store.StatusAborted
	}
	if err := st.FinishSession(sess.ID, status, res.FinalState.TotalRuleChanges); err != nil {
		log.Error("finish session", zap.Error(err))
	}
	m.SessionFinished(string(status))
	log.Info("session finished", zap.String("status", string(status)), zap.Int("trials", len(res.Trials)))

	printSessionSummary(out, sess.ID, status, eval.NewEvalHarness(eval.DefaultEvalConfig()).Run(res.Trials))
	return waitErr
}

// collaborators builds the presenter side chosen in the config.
func collaborators(cfg config.Config, rec session.Recorder) (session.Collaborators, func(), error) {
	switch cfg.Presenter {
	case config.PresenterRemote:
		d, err := display.NewRemoteDisplay(cfg.PresenterAddr, cfg.PresenterGrace)
		if err != nil {
			return session.Collaborators{}, nil, err
		}
		return d.Collaborators(rec), func() { _ = d.Close() }, nil
	default:
		t := terminal.New(os.Stdin, os.Stdout, cfg.FeedbackDuration)
		return t.Collaborators(rec), func() {}, nil
	}
}

// #endregion run-session

// #region summary

func printSessionSummary(out io.Writer, id string, status store.Status, res eval.EvalResult) {
	s := res.Summary
	fmt.Fprintf(out, "\nSession %s  (%s)\n", shortID(id), status)
	fmt.Fprintf(out, "  Trials:                  %d\n", s.Trials)
	fmt.Fprintf(out, "  Correct / Incorrect / NR: %d / %d / %d\n", s.Correct, s.Incorrect, s.NoResponse)
	fmt.Fprintf(out, "  Categories completed:    %d\n", s.CategoriesCompleted)
	fmt.Fprintf(out, "  Trials to first:         %d\n", s.TrialsToFirst)
	fmt.Fprintf(out, "  Perseverative errors:    %d\n", s.PerseverativeErrors)
	fmt.Fprintf(out, "  Failure to maintain set: %d\n", s.FailureToMaintain)
	fmt.Fprintf(out, "  Mean response time:     %s\n", s.MeanResponseTime.Round(time.Millisecond))
	fmt.Fprintf(out, "  Validity:                %s\n", res.Reason)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion summary
