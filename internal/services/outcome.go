package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// OutcomeKind classifies the result of processing one item in a pass.
type OutcomeKind int

const (
	// OutcomeSuccess means the item was processed and its result written.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeSkip means the item was left unchanged for this pass. The reason
	// is always recorded.
	OutcomeSkip
	// OutcomeFatal means the pass cannot continue.
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkip:
		return "skip"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Skip reasons shared by the passes.
const (
	ReasonUnchanged     = "unchanged"
	ReasonInvalid       = "invalid"
	ReasonMalformed     = "malformed"
	ReasonFetchFailed   = "fetch_failed"
	ReasonNoCandidates  = "no_candidates"
	ReasonNoUpgrade     = "no_upgrade"
	ReasonNoResults     = "no_results"
	ReasonBelowFloor    = "below_confidence_floor"
	ReasonStoreConflict = "store_conflict"
)

// Outcome is the typed result of processing a single item.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	// Updated reports whether a success actually changed persisted state.
	Updated bool
	Err     error
}

// Success reports a processed item. updated is false when the write was a no-op.
func Success(updated bool) Outcome {
	return Outcome{Kind: OutcomeSuccess, Updated: updated}
}

// Skip reports an item that was left unchanged for this pass.
func Skip(reason string, err error) Outcome {
	if strings.TrimSpace(reason) == "" {
		reason = "unspecified"
	}
	return Outcome{Kind: OutcomeSkip, Reason: reason, Err: err}
}

// Fatal reports a failure that aborts the pass.
func Fatal(err error) Outcome {
	if err == nil {
		err = errors.New("fatal outcome without error")
	}
	return Outcome{Kind: OutcomeFatal, Reason: "fatal", Err: err}
}

// Classify converts an item error into an outcome. Systemic and configuration
// errors are fatal, validation errors are skipped as invalid, and everything
// else is skipped with the provided reason.
func Classify(err error, reason string) Outcome {
	switch {
	case err == nil:
		return Success(true)
	case IsFatal(err):
		return Fatal(err)
	case errors.Is(err, ErrValidation):
		return Skip(ReasonInvalid, err)
	default:
		return Skip(reason, err)
	}
}

// Summary aggregates outcomes for a pass. Record is safe for concurrent use by
// the pass worker pool.
type Summary struct {
	mu        sync.Mutex
	Pass      string
	Processed int
	Updated   int
	Skipped   int
	Failed    int
	Reasons   map[string]int
}

// NewSummary returns an empty summary for the named pass.
func NewSummary(pass string) *Summary {
	return &Summary{Pass: pass, Reasons: make(map[string]int)}
}

// Record counts one outcome.
func (s *Summary) Record(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Reasons == nil {
		s.Reasons = make(map[string]int)
	}
	s.Processed++
	switch o.Kind {
	case OutcomeSuccess:
		if o.Updated {
			s.Updated++
		}
	case OutcomeSkip:
		s.Skipped++
		s.Reasons[o.Reason]++
	case OutcomeFatal:
		s.Failed++
		s.Reasons[o.Reason]++
	}
}

// Merge folds other into s.
func (s *Summary) Merge(other *Summary) {
	if other == nil || other == s {
		return
	}
	other.mu.Lock()
	processed, updated, skipped, failed := other.Processed, other.Updated, other.Skipped, other.Failed
	reasons := make(map[string]int, len(other.Reasons))
	for k, v := range other.Reasons {
		reasons[k] = v
	}
	other.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Reasons == nil {
		s.Reasons = make(map[string]int)
	}
	s.Processed += processed
	s.Updated += updated
	s.Skipped += skipped
	s.Failed += failed
	for k, v := range reasons {
		s.Reasons[k] += v
	}
}

// ReasonCount returns how many outcomes were recorded with reason.
func (s *Summary) ReasonCount(reason string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Reasons[reason]
}

// SortedReasons returns the recorded reasons in lexical order.
func (s *Summary) SortedReasons() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.Reasons))
	for k := range s.Reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Summary) String() string {
	reasons := s.SortedReasons()
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	if s.Pass != "" {
		b.WriteString(s.Pass)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "processed=%d updated=%d skipped=%d failed=%d", s.Processed, s.Updated, s.Skipped, s.Failed)
	for _, r := range reasons {
		fmt.Fprintf(&b, " %s=%d", r, s.Reasons[r])
	}
	return b.String()
}
