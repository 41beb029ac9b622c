package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/cobra"

	"github.com/sarchlab/pando/config"
	"github.com/sarchlab/pando/core"
	"github.com/sarchlab/pando/riscv"
	"github.com/sarchlab/pando/system"
	"github.com/sarchlab/pando/trace"
	"github.com/sarchlab/pando/workload"
)

// rootCmd builds the single cobra root command: load a system YAML
// description, run every core's workload to completion, and print the
// per-core statistics table (§6 "CLI / invocation").
func rootCmd() *cobra.Command {
	var (
		backendName   string
		selfLinkDelay int64
		statsDir      string
		logFile       string
	)

	cmd := &cobra.Command{
		Use:   "pando <system.yaml>",
		Short: "Run a PANDO near-memory-computing fabric simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(logFile); err != nil {
				return err
			}

			backend, err := parseBackend(backendName)
			if err != nil {
				return err
			}

			sys, err := config.LoadSystemYAML(args[0])
			if err != nil {
				return err
			}

			if statsDir == "" {
				statsDir = "."
			}

			engine := sim.NewSerialEngine()

			s, err := system.Build(sys, engine, system.Options{
				Backend:       backend,
				SelfLinkDelay: selfLinkDelay,
				StatsDir:      statsDir,
				Threads:       elfThreadFactory,
			})
			if err != nil {
				return err
			}

			if err := s.Run(); err != nil {
				return err
			}

			if !s.AllTerminated() {
				return fmt.Errorf("pando: simulation ended before every hart reached Terminated")
			}

			fmt.Println(s.StatsCollector().RenderTable())
			return nil
		},
	}

	cmd.Flags().StringVar(&backendName, "backend", "simple", "memory backend: simple, selflink, or standard")
	cmd.Flags().Int64Var(&selfLinkDelay, "delay", 50, "cycles of latency for the selflink backend and for the standard backend's atomic/translate requests")
	cmd.Flags().StringVar(&statsDir, "stats-dir", ".", "directory to write the tag-log CSV into")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write JSON structured logs here instead of stderr text")

	return cmd
}

func parseBackend(name string) (system.BackendKind, error) {
	switch strings.ToLower(name) {
	case "simple", "":
		return system.BackendSimple, nil
	case "selflink":
		return system.BackendSelfLink, nil
	case "standard":
		return system.BackendStandard, nil
	default:
		return 0, fmt.Errorf("pando: unknown --backend %q (want simple, selflink, or standard)", name)
	}
}

// setupLogging builds the JSON-over-file-or-text-over-stderr slog default
// handler described in SPEC_FULL.md's AMBIENT STACK logging section.
func setupLogging(path string) error {
	if path == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pando: creating log file %s: %w", path, err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(f, nil)))
	return nil
}

// elfThreadFactory is the default system.ThreadFactory: every hart on a
// core is a RISC-V front-end loaded from the core's configured executable
// (§6 per-core "executable"; the configured argv is not passed to the
// hart). The CLI only wires the ELF path; host-library workloads
// (workload.LoadHostLibrary with core.StartCoroutine) are left to
// embedders.
func elfThreadFactory(cc config.CoreConfig, hartID int) core.ThreadFrontend {
	img, err := workload.LoadELF(cc.Executable)
	if err != nil {
		panic(fmt.Sprintf("pando: pxn=%d pod=%d core=%d hart=%d: %v", cc.PXN, cc.Pod, cc.ID, hartID, err))
	}

	sys := workload.NewHostSyscalls(img.InitialBreak(), func(code int) {
		trace.Trace("hart exited", "pxn", cc.PXN, "pod", cc.Pod, "core", cc.ID, "hart", hartID, "code", code)
	})
	hart := riscv.NewHart(img.Entry, img, sys)

	trace.Trace("hart loaded", "pxn", cc.PXN, "pod", cc.Pod, "core", cc.ID, "hart", hartID,
		"executable", cc.Executable)

	return hart
}
