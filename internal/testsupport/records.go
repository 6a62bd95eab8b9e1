package testsupport

import (
	"fmt"
	"math"

	"rhythmset/internal/record"
)

// Span is a run of one rhythm label lasting Seconds.
type Span struct {
	Label   string
	Seconds int
}

// Record builds a synthetic record whose annotations mark the start of each
// span. The signal is a deterministic sine mix bounded by ±2.
func Record(id string, fs int, spans ...Span) record.Record {
	total := 0
	for _, s := range spans {
		total += s.Seconds * fs
	}
	signal := make([]float64, total)
	for i := range signal {
		x := float64(i) / float64(fs)
		signal[i] = math.Sin(2*math.Pi*1.2*x) + 0.5*math.Sin(2*math.Pi*7*x+float64(len(id)))
	}

	events := make([]record.Event, 0, len(spans))
	offset := 0
	for _, s := range spans {
		events = append(events, record.Event{Sample: offset, Label: s.Label})
		offset += s.Seconds * fs
	}
	return record.Record{ID: id, SampleRate: float64(fs), Signal: signal, Events: events}
}

// Corpus builds n records cycling through positive-heavy, negative-heavy and
// balanced rhythm mixes, plus single-label records every fourth id.
func Corpus(n, fs int) []record.Record {
	out := make([]record.Record, 0, n)
	for i := range n {
		id := fmt.Sprintf("%05d", 4000+i)
		var spans []Span
		switch {
		case i%4 == 3:
			label := "(N"
			if i%8 == 3 {
				label = "(AFIB"
			}
			spans = []Span{{Label: label, Seconds: 60}}
		case i%3 == 0:
			spans = []Span{{"(AFIB", 80}, {"(N", 10}, {"(AFIB", 1}}
		case i%3 == 1:
			spans = []Span{{"(N", 80}, {"(AFIB", 10}, {"(N", 1}}
		default:
			spans = []Span{{"(N", 40}, {"(AFIB", 40}, {"(N", 1}}
		}
		out = append(out, Record(id, fs, spans...))
	}
	return out
}
