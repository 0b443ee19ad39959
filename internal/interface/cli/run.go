package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/YoshitsuguKoike/ladas/internal/application/service/failsafe"
	"github.com/YoshitsuguKoike/ladas/internal/application/service/gate"
	"github.com/YoshitsuguKoike/ladas/internal/application/usecase"
	"github.com/YoshitsuguKoike/ladas/internal/domain/execution"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model"
	capturemodel "github.com/YoshitsuguKoike/ladas/internal/domain/model/capture"
	"github.com/YoshitsuguKoike/ladas/internal/infrastructure/actuator"
	"github.com/YoshitsuguKoike/ladas/internal/infrastructure/capture"
	"github.com/YoshitsuguKoike/ladas/internal/infrastructure/persistence/sqlite"
	reasoning "github.com/YoshitsuguKoike/ladas/internal/infrastructure/reasoning/anthropic"
	"github.com/YoshitsuguKoike/ladas/internal/infrastructure/trigger"
	"github.com/YoshitsuguKoike/ladas/internal/infrastructure/websearch"
)

func newRunCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive automation session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				globalConfig.Execution.DryRun = true
			}
			return runSession(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and log actions without touching the screen")
	return cmd
}

func runSession(parent context.Context) error {
	cfg := globalConfig
	log := GetLogger()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// task history store
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	db, err := sql.Open("sqlite3", cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open task history: %w", err)
	}
	defer db.Close()
	if err := sqlite.NewMigrator(db).Migrate(); err != nil {
		return err
	}
	taskRepo := sqlite.NewTaskRepository(db)
	actionRepo := sqlite.NewActionLogRepository(db)

	// platform drivers and failsafe
	xdo := actuator.NewXDoTool(log)
	monitor := failsafe.NewMonitor(trigger.NewCornerGesture(xdo))
	monitor.Start()
	defer monitor.Stop()
	abort := monitor.Signal()

	// capture manager with background retention sweeper
	fs := afero.NewOsFs()
	manager, err := capture.NewManager(fs, cfg.Capture.Dir, capture.NewX11Grabber(),
		capturemodel.Policy{MaxCount: cfg.Capture.MaxCount, MaxAge: cfg.Capture.MaxAge}, log)
	if err != nil {
		return err
	}
	manager.StartSweeper(cfg.Capture.SweepInterval)
	defer manager.StopSweeper()

	// reasoning collaborators
	client, err := reasoning.NewClientFromAPIKey(cfg.Reasoning.AnthropicAPIKey, reasoning.Options{
		Model:       cfg.Reasoning.Model,
		MaxTokens:   cfg.Reasoning.MaxTokens,
		Temperature: cfg.Reasoning.Temperature,
	})
	if err != nil {
		return fmt.Errorf("reasoning client: %w", err)
	}
	decision := reasoning.NewDecision(client)
	perception := reasoning.NewPerception(client, fs)
	searcher := websearch.NewPerplexityTool(cfg.Reasoning.PerplexityAPIKey, log)

	// actuation behind the safety gate
	animator := actuator.NewAnimator(actuator.MotionConfig{SpeedMultiplier: cfg.Execution.CursorSpeed}, abort)
	dispatcher := actuator.NewDispatcher(xdo, xdo, actuator.NewExecShell(), searcher, animator, abort,
		actuator.TypingConfig{MinDelay: cfg.Execution.MinTypeDelay, MaxDelay: cfg.Execution.MaxTypeDelay}, log)
	g := gate.New(gate.Policy{
		AllowedCommands: cfg.Execution.AllowedCommands,
		AllowedHotkeys:  cfg.Execution.AllowedHotkeys,
		UnsafeMode:      cfg.Execution.UnsafeMode,
		DryRun:          cfg.Execution.DryRun,
	}, dispatcher, log)

	session := model.NewSessionID()
	uc := usecase.NewExecuteTaskUseCase(
		session,
		cfg.Capture.MonitorIndex,
		execution.Limits{
			GlobalTimeout:      cfg.Planning.GlobalTimeout,
			StepRetryLimit:     cfg.Planning.StepRetryLimit,
			RepeatedScreen:     cfg.Planning.RepeatedScreenLimit,
			DecisionCallBudget: cfg.Reasoning.DecisionCallBudget,
			BackoffBase:        cfg.Planning.BackoffBase,
			BackoffMax:         cfg.Planning.BackoffMax,
		},
		manager, perception, decision, g, taskRepo, actionRepo, abort, log,
	)

	if incomplete, err := taskRepo.FindIncompleteTasks(ctx); err == nil && len(incomplete) > 0 {
		log.Warn("%d tasks were left unfinished by a previous session; see 'ladas tasks'", len(incomplete))
	}

	log.Info("session %s started (dry_run=%v unsafe=%v)", session, cfg.Execution.DryRun, cfg.Execution.UnsafeMode)
	fmt.Println("Enter a task instruction, or 'exit' to quit. Slam the pointer into the top-left corner to abort.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if abort.Triggered() {
			log.Warn("failsafe triggered, session closed")
			return nil
		}
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		t, err := uc.Execute(ctx, line)
		if err != nil {
			log.Error("task failed: %v", err)
		}
		if t != nil {
			fmt.Printf("task %s finished with status %s\n", t.ID(), t.Status())
		}
		if ctx.Err() != nil {
			break
		}
	}
	log.Info("session %s closed", session)
	return scanner.Err()
}
