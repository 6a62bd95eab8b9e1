// Package rhythm maps raw rhythm annotation labels onto the binary
// classification target.
package rhythm

import (
	"fmt"
	"strings"
)

// Class is the classification of a raw rhythm label.
type Class int

const (
	Unclassified Class = iota
	Negative
	Positive
)

func (c Class) String() string {
	switch c {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "unclassified"
	}
}

// Label returns the binary training label (1 positive, 0 negative). The
// boolean is false for Unclassified.
func (c Class) Label() (uint8, bool) {
	switch c {
	case Positive:
		return 1, true
	case Negative:
		return 0, true
	default:
		return 0, false
	}
}

// Kept reports whether the class contributes segments.
func (c Class) Kept() bool {
	return c == Positive || c == Negative
}

// DefaultPositive lists the atrial fibrillation labels of the source data set.
func DefaultPositive() []string { return []string{"(AFIB", "AFIB"} }

// DefaultNegative lists the normal sinus rhythm labels of the source data set.
func DefaultNegative() []string { return []string{"(N", "N", "NSR"} }

// Classifier is an immutable lookup from raw label to Class.
type Classifier struct {
	classes map[string]Class
}

// NewClassifier builds a classifier from the two label sets. Labels are
// whitespace-trimmed; a label present in both sets is rejected.
func NewClassifier(positive, negative []string) (*Classifier, error) {
	classes := make(map[string]Class, len(positive)+len(negative))
	for _, label := range positive {
		if label = strings.TrimSpace(label); label != "" {
			classes[label] = Positive
		}
	}
	for _, label := range negative {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if classes[label] == Positive {
			return nil, fmt.Errorf("label %q listed as both positive and negative", label)
		}
		classes[label] = Negative
	}
	return &Classifier{classes: classes}, nil
}

// DefaultClassifier returns a classifier over the default label sets.
func DefaultClassifier() *Classifier {
	c, _ := NewClassifier(DefaultPositive(), DefaultNegative())
	return c
}

// Classify maps a raw label to its class. Unknown labels are Unclassified.
func (c *Classifier) Classify(raw string) Class {
	if c == nil {
		return Unclassified
	}
	return c.classes[strings.TrimSpace(raw)]
}
