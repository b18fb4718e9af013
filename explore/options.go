package explore

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Selection is the pair selection policy.
type Selection string

const (
	// SelectExhaustive tries every ordered pair (i, j), i != j.
	SelectExhaustive Selection = "exhaustive"
	// SelectRandom draws two distinct random indices per attempt.
	SelectRandom Selection = "random"
)

// Termination is the run termination policy.
type Termination string

const (
	// UntilFixedPoint stops after a pass that discovers nothing.
	UntilFixedPoint Termination = "fixed_point"
	// UntilCeiling stops once MaxAttempts clicks have been issued.
	UntilCeiling Termination = "ceiling"
)

// Persistence controls when discoveries reach the store.
type Persistence string

const (
	// PersistBatch merges pending discoveries at the end of every pass.
	PersistBatch Persistence = "batch"
	// PersistIncremental merges each discovery as soon as it is found.
	PersistIncremental Persistence = "incremental"
)

// AfterPassFunc runs between passes. Returning reloaded=true tells the
// explorer the page was reloaded and every item id it knows is void.
type AfterPassFunc func(ctx context.Context, pass int) (reloaded bool, err error)

// Options configures an Explorer.
type Options struct {
	Page     Page
	Store    Store
	Recorder Recorder // optional

	Selection   Selection
	Termination Termination
	Persistence Persistence

	// MaxAttempts caps issued pair attempts. Required for UntilCeiling,
	// optional extra bound otherwise. 0 = unbounded.
	MaxAttempts int

	// SampleSize is the number of draws per random pass. Default: 50.
	SampleSize int

	// ClickDelay is waited before each of the two clicks. Zero means no
	// wait; negative values are treated as zero. The crafter config uses 50ms.
	ClickDelay time.Duration
	// SettleDelay is waited after the second click. Zero means no wait.
	// The crafter config uses 200ms.
	SettleDelay time.Duration
	// PassInterval is waited between passes. Zero means no wait. The
	// crafter config uses 1s.
	PassInterval time.Duration

	Rand      *rand.Rand
	AfterPass AfterPassFunc

	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Selection == "" {
		o.Selection = SelectExhaustive
	}
	if o.Termination == "" {
		if o.Selection == SelectRandom {
			o.Termination = UntilCeiling
		} else {
			o.Termination = UntilFixedPoint
		}
	}
	if o.Persistence == "" {
		o.Persistence = PersistBatch
	}
	if o.SampleSize <= 0 {
		o.SampleSize = 50
	}
	if o.ClickDelay < 0 {
		o.ClickDelay = 0
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.PassInterval < 0 {
		o.PassInterval = 0
	}
	if o.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		o.Rand = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Validate reports option combinations that cannot terminate or are unknown.
func (o *Options) Validate() error {
	if o.Page == nil {
		return fmt.Errorf("explore: page is required")
	}
	if o.Store == nil {
		return fmt.Errorf("explore: store is required")
	}
	switch o.Selection {
	case SelectExhaustive, SelectRandom:
	default:
		return fmt.Errorf("explore: unknown selection %q", o.Selection)
	}
	switch o.Termination {
	case UntilFixedPoint, UntilCeiling:
	default:
		return fmt.Errorf("explore: unknown termination %q", o.Termination)
	}
	switch o.Persistence {
	case PersistBatch, PersistIncremental:
	default:
		return fmt.Errorf("explore: unknown persistence %q", o.Persistence)
	}
	if o.Termination == UntilCeiling && o.MaxAttempts <= 0 {
		return fmt.Errorf("explore: termination %q needs max_attempts > 0", o.Termination)
	}
	if o.Selection == SelectRandom && o.Termination != UntilCeiling {
		return fmt.Errorf("explore: random selection has no fixed point, use termination %q", UntilCeiling)
	}
	if o.MaxAttempts < 0 {
		return fmt.Errorf("explore: max_attempts must be >= 0")
	}
	return nil
}
