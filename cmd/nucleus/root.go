package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/nucleuslib/nucleus/pkg/nucleus"
	"github.com/nucleuslib/nucleus/pkg/nucleus/ecs"
	"github.com/pkg/profile"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

const (
	profileNone = ""
	profileCPU  = "cpu"
	profileMem  = "mem"

	outputText = "text"
	outputJSON = "json"
)

// summary is printed to stdout when a run ends.
type summary struct {
	Frames  uint64 `json:"frames"`
	Updates int    `json:"updates"`
	Reports int    `json:"reports"`
}

type runFlags struct {
	frames      uint64
	tickRate    float64
	profile     string
	profilePath string
	report      int
	output      string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "nucleus",
		Short:        "Run worlds on the nucleus ECS runtime",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	flags := runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the counter demo world",
		Long: "Run the counter demo world until it reaches --frames frames or the process is " +
			"interrupted. NUCLEUS_* environment variables configure the host; flags override them.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd, flags)
		},
	}

	cmd.Flags().Uint64Var(&flags.frames, "frames", 100, "frames to run, 0 to run until interrupted")
	cmd.Flags().Float64Var(&flags.tickRate, "tick-rate", 0, "frames per second, 0 for unpaced")
	cmd.Flags().StringVar(&flags.profile, "profile", profileNone, "write a profile: cpu or mem")
	cmd.Flags().StringVar(&flags.profilePath, "profile-path", ".", "directory profiles are written to")
	cmd.Flags().IntVar(&flags.report, "report-every", 10, "frames between progress events")
	cmd.Flags().StringVar(&flags.output, "output", outputText, "summary format: text or json")

	return cmd
}

func runDemo(cmd *cobra.Command, flags runFlags) error {
	if flags.output != outputText && flags.output != outputJSON {
		return eris.Errorf("unknown output %q (must be %q or %q)", flags.output, outputText, outputJSON)
	}

	stopProfile, err := startProfile(flags.profile, flags.profilePath)
	if err != nil {
		return err
	}
	defer stopProfile()

	demo := newCounterDemo(flags.report)
	host, err := nucleus.NewHost(nucleus.HostOptions{
		TickRate:  flags.tickRate,
		MaxFrames: flags.frames,
		Plugins:   []ecs.Plugin{demo},
		LogOutput: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = host.Run(ctx)
	host.Telemetry().LogMetrics()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return printSummary(cmd, flags.output, summary{
		Frames:  host.World().FrameCount(),
		Updates: demo.Updates(),
		Reports: demo.Reports(),
	})
}

func printSummary(cmd *cobra.Command, output string, s summary) error {
	if output == outputJSON {
		if err := json.NewEncoder(cmd.OutOrStdout()).Encode(s); err != nil {
			return eris.Wrap(err, "failed to encode summary")
		}
		return nil
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "frames=%d updates=%d reports=%d\n", s.Frames, s.Updates, s.Reports)
	return err
}

func startProfile(kind, path string) (func(), error) {
	var mode func(*profile.Profile)
	switch kind {
	case profileNone:
		return func() {}, nil
	case profileCPU:
		mode = profile.CPUProfile
	case profileMem:
		mode = profile.MemProfileAllocs
	default:
		return nil, eris.Errorf("unknown profile %q (must be %q or %q)", kind, profileCPU, profileMem)
	}
	p := profile.Start(mode, profile.ProfilePath(path), profile.NoShutdownHook, profile.Quiet)
	return p.Stop, nil
}
