// Package rebalance moves boundary cells between regions to even out
// workload. Moves are limited to region pairs the adjacency whitelist
// allows, and every operation works on a fresh grid snapshot.
package rebalance

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/sector.balance/internal/boundary"
	"github.com/banshee-data/sector.balance/internal/config"
	"github.com/banshee-data/sector.balance/internal/grid"
	"github.com/banshee-data/sector.balance/internal/monitoring"
	"github.com/google/uuid"
)

// ErrNoEligibleTransfer means no donor cell touches the recipient. It is
// an ordinary outcome, recorded on the pair report.
var ErrNoEligibleTransfer = errors.New("no eligible transfer")

var logf = monitoring.Stage("rebalance")

// Kind names the operation that produced a batch report.
type Kind string

const (
	KindTransfer Kind = "transfer"
	KindGive     Kind = "give"
	KindTake     Kind = "take"
)

// PairReport describes one donor → recipient attempt.
type PairReport struct {
	Donor     int
	Recipient int
	Moved     []int // cell ids relabelled, ascending

	DonorBefore     float64
	DonorAfter      float64
	RecipientBefore float64
	RecipientAfter  float64

	Err error // wraps ErrNoEligibleTransfer when nothing moved
}

// BatchReport describes one transfer, give-bulk or take-bulk operation.
type BatchReport struct {
	ID           string
	Kind         Kind
	GraphVersion int // snapshot the boundary graph was built from
	Pairs        []PairReport
	Final        map[int]float64 // workload per region after the batch
}

// Moved returns every cell id moved in the batch, ascending and without
// duplicates.
func (b *BatchReport) Moved() []int {
	seen := make(map[int]struct{})
	var ids []int
	for _, p := range b.Pairs {
		for _, id := range p.Moved {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Rebalancer applies transfers against a fixed region adjacency whitelist.
type Rebalancer struct {
	neighbors map[int][]int
}

// New validates the whitelist: positive region ids, no region listing
// itself, and every listed neighbour present as a key.
func New(neighbors map[int][]int) (*Rebalancer, error) {
	if len(neighbors) == 0 {
		return nil, fmt.Errorf("%w: empty neighbor whitelist", config.ErrInvalidConfiguration)
	}
	wl := make(map[int][]int, len(neighbors))
	for region, list := range neighbors {
		if region <= 0 {
			return nil, fmt.Errorf("%w: region ids must be positive, got %d", config.ErrInvalidConfiguration, region)
		}
		for _, n := range list {
			if n == region {
				return nil, fmt.Errorf("%w: region %d lists itself as a neighbor", config.ErrInvalidConfiguration, region)
			}
			if _, ok := neighbors[n]; !ok {
				return nil, fmt.Errorf("%w: region %d lists unknown neighbor %d", config.ErrInvalidConfiguration, region, n)
			}
		}
		wl[region] = append([]int(nil), list...)
	}
	return &Rebalancer{neighbors: wl}, nil
}

// Neighbors returns the whitelisted neighbours of region in whitelist order.
func (r *Rebalancer) Neighbors(region int) []int {
	return r.neighbors[region]
}

func (r *Rebalancer) known(region int) error {
	if _, ok := r.neighbors[region]; !ok {
		return fmt.Errorf("%w: region %d is not in the neighbor whitelist", config.ErrInvalidConfiguration, region)
	}
	return nil
}

func (r *Rebalancer) checkPair(donor, recipient int) error {
	if err := r.known(donor); err != nil {
		return err
	}
	if err := r.known(recipient); err != nil {
		return err
	}
	if donor == recipient {
		return fmt.Errorf("%w: donor and recipient are both region %d", config.ErrInvalidConfiguration, donor)
	}
	return nil
}

// Transfer relabels every donor cell that the boundary graph lists as
// touching recipient. The graph is used as given: a cell it lists is moved
// even if a later snapshot relabelled it. The returned grid is a new
// snapshot; g is not modified. When nothing is eligible the snapshot is an
// unchanged copy and the pair report carries ErrNoEligibleTransfer.
func (r *Rebalancer) Transfer(g *grid.Grid, gr *boundary.Graph, donor, recipient int) (*grid.Grid, *BatchReport, error) {
	if err := r.checkPair(donor, recipient); err != nil {
		return nil, nil, err
	}
	out := g.Clone()
	report := r.newReport(KindTransfer, gr)
	pair, err := r.transfer(out, gr, donor, recipient)
	if err != nil {
		return nil, nil, err
	}
	report.Pairs = append(report.Pairs, pair)
	r.finish(report, out)
	return out, report, nil
}

// GiveBulk moves boundary cells out of every excess region into each of its
// whitelisted neighbours that is not itself excess. Donors are processed in
// ascending order of their non-excess neighbour count, ties in input order;
// each donor's neighbours in whitelist order. One boundary graph, built from
// g, serves every pair of the batch.
func (r *Rebalancer) GiveBulk(g *grid.Grid, excess []int) (*grid.Grid, *BatchReport, error) {
	if len(excess) == 0 {
		return nil, nil, fmt.Errorf("%w: empty excess region set", config.ErrInvalidConfiguration)
	}
	isExcess := make(map[int]bool, len(excess))
	for _, region := range excess {
		if err := r.known(region); err != nil {
			return nil, nil, err
		}
		isExcess[region] = true
	}

	targets := make(map[int][]int, len(excess))
	for _, donor := range excess {
		for _, n := range r.neighbors[donor] {
			if !isExcess[n] {
				targets[donor] = append(targets[donor], n)
			}
		}
	}
	donors := append([]int(nil), excess...)
	sort.SliceStable(donors, func(i, j int) bool {
		return len(targets[donors[i]]) < len(targets[donors[j]])
	})

	gr := boundary.Build(g)
	out := g.Clone()
	report := r.newReport(KindGive, gr)
	for _, donor := range donors {
		for _, recipient := range targets[donor] {
			pair, err := r.transfer(out, gr, donor, recipient)
			if err != nil {
				return nil, nil, err
			}
			report.Pairs = append(report.Pairs, pair)
		}
	}
	r.finish(report, out)
	return out, report, nil
}

// TakeBulk moves boundary cells from each listed neighbour into the
// deficient region, in list order, against one boundary graph built from g.
// A nil list uses the deficient region's whitelist order.
func (r *Rebalancer) TakeBulk(g *grid.Grid, deficient int, neighbors []int) (*grid.Grid, *BatchReport, error) {
	if err := r.known(deficient); err != nil {
		return nil, nil, err
	}
	if neighbors == nil {
		neighbors = r.neighbors[deficient]
	}
	allowed := make(map[int]bool)
	for _, n := range r.neighbors[deficient] {
		allowed[n] = true
	}
	for _, n := range neighbors {
		if err := r.checkPair(n, deficient); err != nil {
			return nil, nil, err
		}
		if !allowed[n] {
			return nil, nil, fmt.Errorf("%w: region %d is not a whitelisted neighbor of %d", config.ErrInvalidConfiguration, n, deficient)
		}
	}

	gr := boundary.Build(g)
	out := g.Clone()
	report := r.newReport(KindTake, gr)
	for _, donor := range neighbors {
		pair, err := r.transfer(out, gr, donor, deficient)
		if err != nil {
			return nil, nil, err
		}
		report.Pairs = append(report.Pairs, pair)
	}
	r.finish(report, out)
	return out, report, nil
}

// transfer relabels in place on a snapshot the caller owns.
func (r *Rebalancer) transfer(g *grid.Grid, gr *boundary.Graph, donor, recipient int) (PairReport, error) {
	before := g.RegionWorkloads()
	pair := PairReport{
		Donor:           donor,
		Recipient:       recipient,
		DonorBefore:     before[donor],
		RecipientBefore: before[recipient],
	}

	pair.Moved = gr.Eligible(donor, recipient)
	if len(pair.Moved) == 0 {
		pair.DonorAfter, pair.RecipientAfter = pair.DonorBefore, pair.RecipientBefore
		pair.Err = fmt.Errorf("region %d → %d: %w", donor, recipient, ErrNoEligibleTransfer)
		logf("%d → %d: no eligible cells", donor, recipient)
		return pair, nil
	}
	if err := g.Relabel(pair.Moved, recipient); err != nil {
		return pair, fmt.Errorf("transfer %d → %d: %w", donor, recipient, err)
	}

	after := g.RegionWorkloads()
	pair.DonorAfter, pair.RecipientAfter = after[donor], after[recipient]
	logf("%d → %d: moved %d cells; donor %.3f → %.3f, recipient %.3f → %.3f",
		donor, recipient, len(pair.Moved),
		pair.DonorBefore, pair.DonorAfter, pair.RecipientBefore, pair.RecipientAfter)
	return pair, nil
}

func (r *Rebalancer) newReport(kind Kind, gr *boundary.Graph) *BatchReport {
	return &BatchReport{
		ID:           uuid.New().String(),
		Kind:         kind,
		GraphVersion: gr.Version,
	}
}

// finish records the final workload of every whitelisted region and every
// region label present in the grid.
func (r *Rebalancer) finish(report *BatchReport, g *grid.Grid) {
	report.Final = g.RegionWorkloads()
	for region := range r.neighbors {
		if _, ok := report.Final[region]; !ok {
			report.Final[region] = 0
		}
	}
	logf("%s batch %s: %d pairs, %d cells moved", report.Kind, report.ID, len(report.Pairs), len(report.Moved()))
}
