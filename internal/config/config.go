package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/runner1010/lsm6fifo/lsm6dsox"
)

const DefaultAppName = "lsm6fifo"
const DefaultConfigName = "config"
const DefaultInterval = 10 * time.Millisecond
const DefaultWindow = 64
const DefaultSink = "text"
const DefaultLogFormat = "text"

var userHomeDir, _ = os.UserHomeDir()
var DefaultConfig = path.Join(userHomeDir, ".config", DefaultAppName, DefaultConfigName+".yaml")
var DefaultConfigSearchPath0 = path.Join(userHomeDir, ".config", DefaultAppName)

const DefaultConfigSearchPath1 = "/etc/" + DefaultAppName
const DefaultConfigSearchPath2 = "./"

type SensorOpt struct {
	Bus               string        `yaml:"bus" mapstructure:"bus"`
	Addr              uint16        `yaml:"addr" mapstructure:"addr"`
	RateHz            float64       `yaml:"rate_hz" mapstructure:"rate_hz"`
	RangeG            int           `yaml:"range_g" mapstructure:"range_g"`
	Watermark         uint16        `yaml:"watermark" mapstructure:"watermark"`
	BatchHz           float64       `yaml:"batch_hz" mapstructure:"batch_hz"`
	Mode              string        `yaml:"mode" mapstructure:"mode"`
	GyroHz            float64       `yaml:"gyro_hz" mapstructure:"gyro_hz"`
	EmbeddedFunctions bool          `yaml:"embedded_functions" mapstructure:"embedded_functions"`
	ResetDelay        time.Duration `yaml:"reset_delay" mapstructure:"reset_delay"`
	Policy            string        `yaml:"policy" mapstructure:"policy"`
}

type StreamOpt struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	Window   int           `yaml:"window" mapstructure:"window"`
	Sink     string        `yaml:"sink" mapstructure:"sink"`
}

type LogOpt struct {
	Format string `yaml:"format" mapstructure:"format"`
	Debug  bool   `yaml:"debug" mapstructure:"debug"`
}

type Opt struct {
	Sensor SensorOpt `yaml:"sensor" mapstructure:"sensor"`
	Stream StreamOpt `yaml:"stream" mapstructure:"stream"`
	Log    LogOpt    `yaml:"log" mapstructure:"log"`
}

type Desc struct {
	Opt   Opt
	Viper *viper.Viper
}

func NewDesc() Desc {
	return Desc{
		Opt:   NewOpt(),
		Viper: nil,
	}
}

// NewOpt mirrors lsm6dsox.DefaultConfig.
func NewOpt() Opt {
	def := lsm6dsox.DefaultConfig()
	return Opt{
		Sensor: SensorOpt{
			Addr:       lsm6dsox.Addr,
			RateHz:     6667,
			RangeG:     int(def.Range.G()),
			Watermark:  def.Watermark,
			BatchHz:    12.5,
			Mode:       def.Mode.String(),
			GyroHz:     0,
			ResetDelay: def.ResetDelay,
			Policy:     lsm6dsox.PolicyFailFast.String(),
		},
		Stream: StreamOpt{
			Interval: DefaultInterval,
			Window:   DefaultWindow,
			Sink:     DefaultSink,
		},
		Log: LogOpt{
			Format: DefaultLogFormat,
		},
	}
}

func (o *Desc) Parse(cmd *cobra.Command) error {
	def := NewOpt()
	vipCfg := viper.New()
	vipCfg.SetDefault("sensor.bus", def.Sensor.Bus)
	vipCfg.SetDefault("sensor.addr", def.Sensor.Addr)
	vipCfg.SetDefault("sensor.rate_hz", def.Sensor.RateHz)
	vipCfg.SetDefault("sensor.range_g", def.Sensor.RangeG)
	vipCfg.SetDefault("sensor.watermark", def.Sensor.Watermark)
	vipCfg.SetDefault("sensor.batch_hz", def.Sensor.BatchHz)
	vipCfg.SetDefault("sensor.mode", def.Sensor.Mode)
	vipCfg.SetDefault("sensor.gyro_hz", def.Sensor.GyroHz)
	vipCfg.SetDefault("sensor.embedded_functions", def.Sensor.EmbeddedFunctions)
	vipCfg.SetDefault("sensor.reset_delay", def.Sensor.ResetDelay)
	vipCfg.SetDefault("sensor.policy", def.Sensor.Policy)
	vipCfg.SetDefault("stream.interval", def.Stream.Interval)
	vipCfg.SetDefault("stream.window", def.Stream.Window)
	vipCfg.SetDefault("stream.sink", def.Stream.Sink)
	vipCfg.SetDefault("log.format", def.Log.Format)
	vipCfg.SetDefault("log.debug", def.Log.Debug)

	if configFileCmd, err := cmd.Flags().GetString("config"); err == nil && configFileCmd != "" {
		vipCfg.SetConfigFile(configFileCmd)
	} else {
		configFileEnv := os.Getenv("LSM6FIFO_CONFIG")
		if configFileEnv != "" {
			vipCfg.SetConfigFile(configFileEnv)
		} else {
			vipCfg.SetConfigName(DefaultConfigName)
			vipCfg.SetConfigType("yaml")
			vipCfg.AddConfigPath(DefaultConfigSearchPath0)
			vipCfg.AddConfigPath(DefaultConfigSearchPath1)
			vipCfg.AddConfigPath(DefaultConfigSearchPath2)
		}
	}

	vipCfg.SetEnvPrefix(DefaultAppName)
	vipCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vipCfg.AutomaticEnv()

	bindFlag(vipCfg, cmd, "sensor.bus", "bus")
	bindFlag(vipCfg, cmd, "sensor.addr", "addr")
	bindFlag(vipCfg, cmd, "sensor.policy", "policy")
	bindFlag(vipCfg, cmd, "stream.interval", "interval")
	bindFlag(vipCfg, cmd, "stream.sink", "sink")
	bindFlag(vipCfg, cmd, "log.debug", "debug")

	// If a config file is found, read it in.
	if err := vipCfg.ReadInConfig(); err == nil {
		log.Debugln("using config file:", vipCfg.ConfigFileUsed())
	} else {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && vipCfg.ConfigFileUsed() != "" {
			return fmt.Errorf("config: could not read %s: %w", vipCfg.ConfigFileUsed(), err)
		}
		log.Debugln(err)
	}

	if err := vipCfg.Unmarshal(&o.Opt); err != nil {
		return fmt.Errorf("config: could not unmarshal: %w", err)
	}

	o.Viper = vipCfg
	return nil
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, key, name string) {
	if f := cmd.Flags().Lookup(name); f != nil {
		_ = v.BindPFlag(key, f)
	}
}

func (o *Desc) PostParse() {
	if o.Opt.Log.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	if strings.EqualFold(o.Opt.Log.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// SensorConfig converts the sensor options to a device configuration.
func (o *Opt) SensorConfig() (lsm6dsox.Config, lsm6dsox.Policy, error) {
	var errs []error
	cfg := lsm6dsox.Config{
		Watermark:         o.Sensor.Watermark,
		EmbeddedFunctions: o.Sensor.EmbeddedFunctions,
		ResetDelay:        o.Sensor.ResetDelay,
	}
	var err error
	if cfg.DataRate, err = lsm6dsox.ParseDataRate(o.Sensor.RateHz); err != nil {
		errs = append(errs, err)
	}
	if cfg.Range, err = lsm6dsox.ParseRange(o.Sensor.RangeG); err != nil {
		errs = append(errs, err)
	}
	if cfg.BatchRate, err = lsm6dsox.ParseDataRate(o.Sensor.BatchHz); err != nil {
		errs = append(errs, err)
	}
	if cfg.GyroRate, err = lsm6dsox.ParseDataRate(o.Sensor.GyroHz); err != nil {
		errs = append(errs, err)
	}
	if cfg.Mode, err = lsm6dsox.ParseMode(o.Sensor.Mode); err != nil {
		errs = append(errs, err)
	}
	policy, err := lsm6dsox.ParsePolicy(o.Sensor.Policy)
	if err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return lsm6dsox.Config{}, 0, err
	}
	if err := cfg.Validate(); err != nil {
		return lsm6dsox.Config{}, 0, err
	}
	return cfg, policy, nil
}

// Dump writes opt as YAML to outputPath. An existing file is only replaced
// when overwrite is set.
func Dump(opt Opt, outputPath string, overwrite bool) error {
	buffer, err := yaml.Marshal(opt)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(path.Dir(outputPath), 0700); err != nil {
		return fmt.Errorf("config: cannot create directory %s: %w", path.Dir(outputPath), err)
	}
	if !overwrite {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("config: %s already exists, use --yes to overwrite", outputPath)
		}
	}
	return os.WriteFile(outputPath, buffer, 0644)
}

// InitCfg prepares a configuration template for the application.
func InitCfg(cmd *cobra.Command, _ []string) error {
	printFlag, _ := cmd.Flags().GetBool("print")
	outputPath, _ := cmd.Flags().GetString("output")
	overwriteFlag, _ := cmd.Flags().GetBool("yes")

	desc := NewDesc()
	if err := desc.Parse(cmd); err != nil {
		log.Errorln(err)
		return err
	}

	if printFlag {
		configBuffer, _ := yaml.Marshal(desc.Opt)
		fmt.Fprint(cmd.OutOrStdout(), string(configBuffer))
		return nil
	}
	if err := Dump(desc.Opt, outputPath, overwriteFlag); err != nil {
		return err
	}
	log.Infoln("configuration written to", outputPath)
	return nil
}
