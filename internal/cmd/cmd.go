package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/runner1010/lsm6fifo"
	"github.com/runner1010/lsm6fifo/internal/config"
	"github.com/runner1010/lsm6fifo/lsm6dsox"
)

var RootCmd = &cobra.Command{
	Use:   "lsm6fifo",
	Short: "stream accelerometer samples from the LSM6DSOX FIFO",
	Long:  "lsm6fifo configures an LSM6DSOX for FIFO streaming over I²C and reports every decoded record.",
}

func parse(cmd *cobra.Command) (config.Desc, error) {
	desc := config.NewDesc()
	if err := desc.Parse(cmd); err != nil {
		return desc, err
	}
	desc.PostParse()
	return desc, nil
}

func sinkFor(name string) (lsm6fifo.Sink, error) {
	switch name {
	case "text", "":
		return lsm6fifo.TextSink{W: os.Stdout}, nil
	case "log":
		return lsm6fifo.LogSink{}, nil
	}
	return nil, fmt.Errorf("unknown sink %q, want text or log", name)
}

func RunCmdRunE(cmd *cobra.Command, _ []string) error {
	desc, err := parse(cmd)
	if err != nil {
		return err
	}
	cfg, policy, err := desc.Opt.SensorConfig()
	if err != nil {
		return err
	}
	sink, err := sinkFor(desc.Opt.Stream.Sink)
	if err != nil {
		return err
	}

	stream, err := lsm6fifo.New(
		lsm6fifo.OnBus(desc.Opt.Sensor.Bus),
		lsm6fifo.OnAddr(desc.Opt.Sensor.Addr),
		lsm6fifo.WithConfig(cfg),
		lsm6fifo.WithPolicy(policy),
		lsm6fifo.WithWindow(desc.Opt.Stream.Window),
	)
	if err != nil {
		return err
	}
	defer stream.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := stream.Run(ctx, sink, desc.Opt.Stream.Interval)
	log.WithFields(log.Fields{
		"ticks":   st.Ticks,
		"records": st.Records,
		"errors":  st.TransportErrors,
	}).Info("stream stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func ProbeCmdRunE(cmd *cobra.Command, _ []string) error {
	desc, err := parse(cmd)
	if err != nil {
		return err
	}

	dev, err := lsm6dsox.New(desc.Opt.Sensor.Bus, desc.Opt.Sensor.Addr)
	if err != nil {
		return err
	}
	defer dev.Close()

	if err := dev.Probe(); err != nil {
		return err
	}
	status, err := dev.FIFOStatus()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "LSM6DSOX detected at %#x, %d records pending\n", dev.Address(), status.Level)
	return nil
}

func sensorFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "configuration file path")
	cmd.Flags().StringP("bus", "b", "", "I²C bus name, empty for the first available bus")
	cmd.Flags().Uint16P("addr", "a", lsm6dsox.Addr, "I²C address of the sensor")
	cmd.Flags().Bool("debug", false, "toggle debug logging")
}

func RunCmdFlags(cmd *cobra.Command) {
	sensorFlags(cmd)
	cmd.Flags().Duration("interval", config.DefaultInterval, "pause between two FIFO polls")
	cmd.Flags().StringP("sink", "s", config.DefaultSink, "sample sink, text or log")
	cmd.Flags().String("policy", lsm6dsox.PolicyFailFast.String(), "setup failure policy: fail-fast, warn or ignore")
}

var RunCmd = &cobra.Command{
	Use: "run",
	SuggestFor: []string{
		"ru", "stream",
	},
	Short: "run configures the sensor and streams its FIFO",
	Long: `run configures the sensor and streams its FIFO until interrupted.
The configuration is looked up in the following order:
1. path specified in --config flag
2. path defined LSM6FIFO_CONFIG environment variable
3. default location $HOME/.config/lsm6fifo/config.yaml, /etc/lsm6fifo/config.yaml, current directory
The parameters in the configuration file will be overwritten by the following order:
1. command line arguments
2. environment variables (LSM6FIFO_SENSOR_RANGE_G, ...)
`,
	Example: `  lsm6fifo run --bus /dev/i2c-1 --sink log`,
	RunE:    RunCmdRunE,
}

var ProbeCmd = &cobra.Command{
	Use:     "probe",
	Short:   "probe checks WHO_AM_I and prints the FIFO level",
	Example: `  lsm6fifo probe --addr 0x6b`,
	RunE:    ProbeCmdRunE,
}

func InitCmdFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("print", false, "print config to stdout")
	cmd.Flags().BoolP("yes", "y", false, "overwrite")
	cmd.Flags().StringP("output", "o", config.DefaultConfig, "specify output path")
}

var InitCmd = &cobra.Command{
	Use: "init",
	SuggestFor: []string{
		"ini", "in",
	},
	Short: "init create a configuration template",
	Long: `init create a configuration template.
If --print flag is present, the configuration will be printed to stdout.
If --output / -o flag is present, the configuration will be saved to the path specified
Otherwise init will output configuration file to $HOME/.config/lsm6fifo/config.yaml
If --yes / -y flag is present, an existing file will be overwritten
`,
	Example: `  lsm6fifo init --print
  lsm6fifo init -o /path/to/config.yaml -y`,
	RunE: config.InitCfg,
}

func init() {
	RunCmdFlags(RunCmd)
	sensorFlags(ProbeCmd)
	InitCmdFlags(InitCmd)
	RootCmd.AddCommand(RunCmd, ProbeCmd, InitCmd)
}
