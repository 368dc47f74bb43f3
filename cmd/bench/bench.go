// bench.go runs a BB84 session for each entry in the cartesian product of a
// collection of tuning parameters, e.g. eavesdropping rate and qubits sent, and
// outputs a CSV of relevant statistics for each combination, e.g. the observed
// QBER, the verdict and the final key length.
package main

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/alan-christopher/bb84sim/bb84"
	"github.com/alan-christopher/bb84sim/bb84/entropy"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

var (
	qubits    = flag.IntSlice("qubits", []int{1000, 10000}, "The number of qubits Alice sends.")
	eve       = flag.Float64Slice("eve", []float64{0, 0.25, 0.5, 1}, "The fraction of qubits the eavesdropper intercepts. 0 disables her.")
	noise     = flag.Float64Slice("noise", []float64{0}, "The probability that the channel flips a measured bit.")
	threshold = flag.Float64Slice("threshold", []float64{bb84.DefaultThreshold}, "The QBER, in percent, above which the key is discarded.")
	ratio     = flag.Float64Slice("ratio", []float64{bb84.DefaultCompressionRatio}, "The privacy amplification compression ratio.")
	seed      = flag.IntSlice("seed", []int{1}, "Seeds for the session entropy stream. Each seed is a separate trial.")
)

var (
	inputs  = []string{"qubits", "eve", "noise", "threshold", "ratio", "seed"}
	columns = []string{"Qubits", "EveFraction", "Noise", "Threshold", "Ratio", "Seed",
		"Matched", "Errors", "QBER", "Outcome", "KeyBits", "BitsDiscarded",
		"ClassicalMessages", "ClassicalBytes"}
)

// An Experiment packages together the result of benchmarking a single
// parameterization for easy formatting.
type Experiment struct {
	// Fields corresponding to experiment parameters
	Qubits      int
	EveFraction float64
	Noise       float64
	Threshold   float64
	Ratio       float64
	Seed        int

	// Fields corresponding to experiment results
	Matched           int
	Errors            int
	QBER              string
	Outcome           bb84.Outcome
	KeyBits           int
	BitsDiscarded     int
	ClassicalMessages int
	ClassicalBytes    int
}

func main() {
	flag.Parse()
	log := logrus.New()
	fmt.Println(header())
	tmpl := template.Must(template.New("line").Parse(lineTmpl()))
	var args [][]interface{}
	for _, inp := range inputs {
		args = append(args, lookupInput(log, inp))
	}
	applyCartesian(func(args []interface{}) {
		exp := &Experiment{
			Qubits:      args[inpIndex("qubits")].(int),
			EveFraction: args[inpIndex("eve")].(float64),
			Noise:       args[inpIndex("noise")].(float64),
			Threshold:   args[inpIndex("threshold")].(float64),
			Ratio:       args[inpIndex("ratio")].(float64),
			Seed:        args[inpIndex("seed")].(int),
		}
		if err := bench(exp); err != nil {
			log.WithError(err).Errorf("Benching %+v", exp)
			return
		}
		if err := tmpl.Execute(os.Stdout, exp); err != nil {
			log.Fatalf("BUG: could not fill in line template: %v", err)
		}
	}, args)
}

func inpIndex(v string) int {
	for i, inp := range inputs {
		if inp == v {
			return i
		}
	}
	return -1
}

func bench(exp *Experiment) error {
	res, err := bb84.RunSession(bb84.SessionOpts{
		Qubits:            exp.Qubits,
		Eavesdropper:      exp.EveFraction > 0,
		EavesdropFraction: exp.EveFraction,
		Noise:             exp.Noise,
		Threshold:         exp.Threshold,
		CompressionRatio:  exp.Ratio,
		Entropy:           entropy.FromInt64(int64(exp.Seed)),
	})
	if err != nil {
		return err
	}
	exp.Matched = res.Matched
	exp.Errors = res.Errors
	exp.QBER = res.QBER.String()
	exp.Outcome = res.Outcome
	exp.KeyBits = res.Key.Size()
	exp.BitsDiscarded = res.Stats.BitsDiscarded
	exp.ClassicalMessages = res.Stats.MessagesSent + res.Stats.MessagesReceived
	exp.ClassicalBytes = res.Stats.BytesSent + res.Stats.BytesRead
	return nil
}

func header() string {
	return strings.Join(columns, ", ")
}

func lineTmpl() string {
	var els []string
	for _, c := range columns {
		els = append(els, "{{."+c+"}}")
	}
	return strings.Join(els, ", ") + "\n"
}

func lookupInput(log *logrus.Logger, name string) []interface{} {
	var r []interface{}
	if v, err := flag.CommandLine.GetIntSlice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else if v, err := flag.CommandLine.GetFloat64Slice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else {
		log.Fatalf("Unknown type for input %s", name)
	}
	return r
}

func applyCartesian(f func([]interface{}), args [][]interface{}) {
	for i := range args {
		if len(args[i]) == 1 {
			continue
		}
		l := make([][]interface{}, len(args))
		r := make([][]interface{}, len(args))
		copy(l, args)
		copy(r, args)
		l[i] = args[i][:1]
		r[i] = args[i][1:]
		applyCartesian(f, l)
		applyCartesian(f, r)
		return
	}
	x := make([]interface{}, 0, len(args))
	for _, a := range args {
		x = append(x, a[0])
	}
	f(x)
}
