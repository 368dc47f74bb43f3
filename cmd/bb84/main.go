// Command bb84 runs one simulated BB84 session and prints a report of what
// Alice and Bob observed and what they concluded.
//
// Every verdict, including a detected eavesdropper, exits 0. Invalid settings
// exit 2 and other failures exit 1.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alan-christopher/bb84sim/bb84"
	"github.com/alan-christopher/bb84sim/bb84/entropy"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs, v := newFlagSet("bb84")
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	cfg, err := loadConfig(fs, v)
	if err != nil {
		fmt.Fprintln(stderr, err)
		if errors.Is(err, bb84.ErrInvalidConfiguration) {
			return 2
		}
		return 1
	}

	log := logrus.New()
	log.SetOutput(stderr)
	if cfg.Verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}

	opts := bb84.SessionOpts{
		Qubits:            cfg.Qubits,
		Eavesdropper:      cfg.Eavesdropper,
		EavesdropFraction: cfg.EveFraction,
		Noise:             cfg.Noise,
		Threshold:         cfg.Threshold,
		CompressionRatio:  cfg.Ratio,
		Logger:            log,
	}
	if cfg.Seed != nil {
		opts.Entropy = entropy.FromInt64(*cfg.Seed)
	}
	res, err := bb84.RunSession(opts)
	if err != nil {
		log.WithError(err).Error("Session failed")
		if errors.Is(err, bb84.ErrInvalidConfiguration) {
			return 2
		}
		return 1
	}
	if err := printReport(stdout, res); err != nil {
		log.WithError(err).Error("Writing report")
		return 1
	}
	return 0
}

func printReport(w io.Writer, res bb84.Result) error {
	if err := res.WriteFields(w); err != nil {
		return err
	}
	_, err := conclusionColor(res.Outcome).Fprintf(w, "CONCLUSION: %s\n", res.Outcome.Conclusion())
	return err
}

func conclusionColor(o bb84.Outcome) *color.Color {
	switch o {
	case bb84.SecureProceed:
		return color.New(color.FgGreen)
	case bb84.HeavyEavesdroppingDetected:
		return color.New(color.FgRed, color.Bold)
	}
	return color.New(color.FgYellow)
}
