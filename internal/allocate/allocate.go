// Package allocate assigns whole records to train, validation and test
// splits, stratified by class balance and annotation density.
package allocate

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"rhythmset/internal/profile"
	"rhythmset/internal/record"
)

// Split names a dataset subset.
type Split string

const (
	Train Split = "train"
	Val   Split = "val"
	Test  Split = "test"
)

// Splits is the fixed output order of splits.
var Splits = []Split{Train, Val, Test}

var (
	// ErrInvalidRatio indicates a split ratio outside [0,1). Ratios summing to 1
	// or more are absorbed by the per-group fallback in GroupSizes.
	ErrInvalidRatio = errors.New("invalid split ratio")
	// ErrDuplicateRecord indicates the same record id was supplied twice.
	ErrDuplicateRecord = errors.New("duplicate record id")
)

// Options configures an allocation.
type Options struct {
	TestRatio  float64
	ValRatio   float64
	Thresholds profile.Thresholds
}

// NewRand returns the deterministic source used for allocation.
func NewRand(seed int64) *rand.Rand {
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// Assignment places one record in one split.
type Assignment struct {
	Profile  profile.Profile  `json:"profile"`
	Category profile.Category `json:"category"`
	Split    Split            `json:"split"`
}

// Result is a complete allocation. Assignments are in allocation order.
type Result struct {
	Assignments []Assignment
	index       map[string]int
}

// GroupSizes returns the test and validation counts for a group of n records.
func GroupSizes(n int, testRatio, valRatio float64) (nTest, nVal int) {
	if n > 2 {
		nTest = max(1, int(math.Floor(float64(n)*testRatio)))
	}
	if n > 1 {
		nVal = max(1, int(math.Floor(float64(n)*valRatio)))
	}
	if nTest+nVal >= n {
		switch {
		case n >= 3:
			nTest, nVal = 1, 1
		case n == 2:
			nTest, nVal = 1, 0
		default:
			nTest, nVal = 0, 0
		}
	}
	return nTest, nVal
}

// Allocate assigns every profile to exactly one split. Groups are visited in
// category then density order, sorted by record id, and shuffled with rng.
func Allocate(profiles []profile.Profile, opts Options, rng *rand.Rand) (*Result, error) {
	if err := validateRatios(opts.TestRatio, opts.ValRatio); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New("allocate: random source is required")
	}

	type key struct {
		category profile.Category
		group    record.Group
	}
	buckets := make(map[key][]profile.Profile)
	seen := make(map[string]struct{}, len(profiles))
	for _, p := range profiles {
		if _, dup := seen[p.RecordID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRecord, p.RecordID)
		}
		seen[p.RecordID] = struct{}{}
		if !slices.Contains(record.Groups, p.Group) {
			return nil, fmt.Errorf("allocate: record %s has unknown density group %q", p.RecordID, p.Group)
		}
		k := key{category: opts.Thresholds.Categorize(p.PositiveRatio()), group: p.Group}
		buckets[k] = append(buckets[k], p)
	}

	res := &Result{
		Assignments: make([]Assignment, 0, len(profiles)),
		index:       make(map[string]int, len(profiles)),
	}
	for _, category := range profile.Categories {
		for _, group := range record.Groups {
			members := buckets[key{category: category, group: group}]
			if len(members) == 0 {
				continue
			}
			slices.SortFunc(members, func(a, b profile.Profile) int { return cmp.Compare(a.RecordID, b.RecordID) })
			rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })

			nTest, nVal := GroupSizes(len(members), opts.TestRatio, opts.ValRatio)
			for i, p := range members {
				split := Train
				switch {
				case i < nTest:
					split = Test
				case i < nTest+nVal:
					split = Val
				}
				res.add(Assignment{Profile: p, Category: category, Split: split})
			}
		}
	}
	return res, nil
}

func validateRatios(testRatio, valRatio float64) error {
	if testRatio < 0 || testRatio >= 1 || math.IsNaN(testRatio) {
		return fmt.Errorf("%w: test ratio %v", ErrInvalidRatio, testRatio)
	}
	if valRatio < 0 || valRatio >= 1 || math.IsNaN(valRatio) {
		return fmt.Errorf("%w: val ratio %v", ErrInvalidRatio, valRatio)
	}
	return nil
}

func (r *Result) add(a Assignment) {
	r.index[a.Profile.RecordID] = len(r.Assignments)
	r.Assignments = append(r.Assignments, a)
}

// SplitOf returns the split holding recordID.
func (r *Result) SplitOf(recordID string) (Split, bool) {
	i, ok := r.index[recordID]
	if !ok {
		return "", false
	}
	return r.Assignments[i].Split, true
}

// Members returns the profiles of one split sorted by record id.
func (r *Result) Members(split Split) []profile.Profile {
	var out []profile.Profile
	for _, a := range r.Assignments {
		if a.Split == split {
			out = append(out, a.Profile)
		}
	}
	slices.SortFunc(out, func(a, b profile.Profile) int { return cmp.Compare(a.RecordID, b.RecordID) })
	return out
}

// MemberIDs returns the record ids of one split sorted ascending.
func (r *Result) MemberIDs(split Split) []string {
	members := r.Members(split)
	ids := make([]string, len(members))
	for i, p := range members {
		ids[i] = p.RecordID
	}
	return ids
}

// Mapping returns record id to split.
func (r *Result) Mapping() map[string]Split {
	out := make(map[string]Split, len(r.Assignments))
	for _, a := range r.Assignments {
		out[a.Profile.RecordID] = a.Split
	}
	return out
}

// Table returns the assignments sorted by split order then record id.
func (r *Result) Table() []Assignment {
	rank := map[Split]int{Train: 0, Val: 1, Test: 2}
	rows := slices.Clone(r.Assignments)
	slices.SortFunc(rows, func(a, b Assignment) int {
		if c := cmp.Compare(rank[a.Split], rank[b.Split]); c != 0 {
			return c
		}
		return cmp.Compare(a.Profile.RecordID, b.Profile.RecordID)
	})
	return rows
}
