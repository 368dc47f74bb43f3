package main

import (
	"fmt"
	"os"

	"github.com/alan-christopher/bb84sim/bb84"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v2"
)

// A Config holds the settings of one run. It may be loaded from a YAML file;
// flags given on the command line take precedence over the file.
type Config struct {
	Qubits       int     `yaml:"qubits"`
	Eavesdropper bool    `yaml:"eavesdropper"`
	EveFraction  float64 `yaml:"eveFraction"`
	Noise        float64 `yaml:"noise"`
	Threshold    float64 `yaml:"threshold"`
	Ratio        float64 `yaml:"ratio"`
	Seed         *int64  `yaml:"seed"`
	Verbose      bool    `yaml:"verbose"`
}

func defaultConfig() Config {
	return Config{
		Qubits:      1000,
		EveFraction: bb84.DefaultEavesdropFraction,
		Threshold:   bb84.DefaultThreshold,
		Ratio:       bb84.DefaultCompressionRatio,
	}
}

// flagValues binds command line flags to their destinations.
type flagValues struct {
	config string
	cfg    Config
	seed   int64
}

func newFlagSet(name string) (*flag.FlagSet, *flagValues) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	v := &flagValues{cfg: defaultConfig()}
	fs.StringVar(&v.config, "config", "", "Path to a YAML config file. Flags override its values.")
	fs.IntVarP(&v.cfg.Qubits, "qubits", "n", v.cfg.Qubits, "The number of qubits Alice sends.")
	fs.BoolVar(&v.cfg.Eavesdropper, "eve", false, "Place an intercept-resend eavesdropper on the quantum channel.")
	fs.Float64Var(&v.cfg.EveFraction, "eve-fraction", v.cfg.EveFraction, "The fraction of qubits the eavesdropper intercepts.")
	fs.Float64Var(&v.cfg.Noise, "noise", 0, "The probability that the channel flips a measured bit.")
	fs.Float64Var(&v.cfg.Threshold, "threshold", v.cfg.Threshold, "The QBER, in percent, above which the key is discarded.")
	fs.Float64Var(&v.cfg.Ratio, "ratio", v.cfg.Ratio, "The privacy amplification compression ratio, in (0, 1].")
	fs.Int64Var(&v.seed, "seed", 0, "Seed for the session entropy. Unset draws a fresh seed from the OS.")
	fs.BoolVarP(&v.cfg.Verbose, "verbose", "v", false, "Log every stage of the session.")
	return fs, v
}

// loadConfig merges the defaults, the file named by --config, if any, and
// every flag explicitly set on fs, in increasing order of precedence.
func loadConfig(fs *flag.FlagSet, v *flagValues) (Config, error) {
	cfg := defaultConfig()
	if v.config != "" {
		data, err := os.ReadFile(v.config)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parsing %s: %v", bb84.ErrInvalidConfiguration, v.config, err)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "qubits":
			cfg.Qubits = v.cfg.Qubits
		case "eve":
			cfg.Eavesdropper = v.cfg.Eavesdropper
		case "eve-fraction":
			cfg.EveFraction = v.cfg.EveFraction
		case "noise":
			cfg.Noise = v.cfg.Noise
		case "threshold":
			cfg.Threshold = v.cfg.Threshold
		case "ratio":
			cfg.Ratio = v.cfg.Ratio
		case "seed":
			seed := v.seed
			cfg.Seed = &seed
		case "verbose":
			cfg.Verbose = v.cfg.Verbose
		}
	})
	return cfg, nil
}
