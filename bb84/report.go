package bb84

import (
	"fmt"
	"io"

	"github.com/elliotchance/orderedmap"
)

// ReportConfidence is the confidence level of the QBER interval in reports.
const ReportConfidence = 0.95

// Fields returns the report fields of r, in display order. Values are already
// formatted.
func (r Result) Fields() *orderedmap.OrderedMap {
	m := orderedmap.NewOrderedMap()
	m.Set("Total Trials", fmt.Sprint(r.Qubits))
	m.Set("Bits where Bases Matched", fmt.Sprint(r.Matched))
	m.Set("Detected Bit Errors", fmt.Sprint(r.Errors))
	m.Set("Calculated QBER", r.QBER.String())
	interval := "n/a"
	if lo, hi, ok := r.QBER.Interval(ReportConfidence); ok {
		interval = fmt.Sprintf("[%.2f%%, %.2f%%]", lo, hi)
	}
	m.Set(fmt.Sprintf("QBER %.0f%% Interval", 100*ReportConfidence), interval)
	if r.Outcome == SecureProceed {
		m.Set("Reconciled Bits Discarded", fmt.Sprint(r.Stats.BitsDiscarded))
		m.Set("Classical Messages", fmt.Sprint(r.Stats.MessagesSent+r.Stats.MessagesReceived))
	}
	m.Set("Final Key Bits", fmt.Sprint(r.Key.Size()))
	return m
}

// WriteFields writes one "Name: value" line per report field of r.
func (r Result) WriteFields(w io.Writer) error {
	for el := r.Fields().Front(); el != nil; el = el.Next() {
		if _, err := fmt.Fprintf(w, "%v: %v\n", el.Key, el.Value); err != nil {
			return err
		}
	}
	return nil
}

// WriteReport writes a human readable summary of r to w, ending with its
// conclusion.
func (r Result) WriteReport(w io.Writer) error {
	if err := r.WriteFields(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "CONCLUSION: %s\n", r.Outcome.Conclusion())
	return err
}
