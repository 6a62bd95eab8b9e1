package pipeline

import (
	"fmt"
	"slices"

	"rhythmset/internal/allocate"
	"rhythmset/internal/artifact"
)

// VerifySplits reads the written split artifacts back and checks their
// integrity, shape, label domain and record disjointness.
func VerifySplits(store *artifact.Store, meta *artifact.SplitMetadata) error {
	owner := make(map[string]allocate.Split)
	for _, split := range allocate.Splits {
		info, ok := meta.Files[split]
		if !ok {
			return fmt.Errorf("%w: %s missing from metadata", ErrLoadCheck, split)
		}
		if err := store.VerifySplit(split, info); err != nil {
			return fmt.Errorf("%w: %v", ErrLoadCheck, err)
		}
		data, err := store.ReadSplit(split)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLoadCheck, err)
		}
		if data.Split != split {
			return fmt.Errorf("%w: %s artifact holds split %q", ErrLoadCheck, split, data.Split)
		}
		n := len(data.Labels)
		if len(data.Windows) != n || len(data.RecordMapping) != n {
			return fmt.Errorf("%w: %s has %d windows, %d labels, %d mapping entries",
				ErrLoadCheck, split, len(data.Windows), n, len(data.RecordMapping))
		}
		for i, w := range data.Windows {
			if len(w) != meta.WindowSamples {
				return fmt.Errorf("%w: %s window %d has %d samples, expected %d", ErrLoadCheck, split, i, len(w), meta.WindowSamples)
			}
		}
		for i, l := range data.Labels {
			if l > 1 {
				return fmt.Errorf("%w: %s label %d is %d", ErrLoadCheck, split, i, l)
			}
		}
		if !slices.Equal(data.Members, meta.Members[split]) {
			return fmt.Errorf("%w: %s members differ from metadata", ErrLoadCheck, split)
		}
		for _, id := range data.RecordMapping {
			if !slices.Contains(data.Members, id) {
				return fmt.Errorf("%w: %s window owned by non-member %s", ErrLoadCheck, split, id)
			}
		}
		for _, id := range data.Members {
			if prev, dup := owner[id]; dup {
				return fmt.Errorf("%w: record %s in both %s and %s", ErrLoadCheck, id, prev, split)
			}
			owner[id] = split
		}
	}
	return nil
}
