// Package rollspec builds roll schedules for constant-maturity futures
// series such as "SR3.cm.182": a synthetic contract that always matures
// 182 days out, priced from the two listed contracts whose expirations
// straddle that target.
package rollspec

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"futurescli/pkg/contracts/domain"
)

// ConstantMaturityTag separates the root from the maturity in a symbol.
const ConstantMaturityTag = "cm"

var (
	ErrInvalidSymbol = errors.New("invalid constant maturity symbol")
	ErrInvalidRange  = errors.New("end date must be after start date")
)

// Symbol is a parsed constant-maturity symbol.
type Symbol struct {
	Root         string
	MaturityDays int
}

func (s Symbol) String() string {
	return fmt.Sprintf("%s.%s.%d", s.Root, ConstantMaturityTag, s.MaturityDays)
}

// ParseSymbol parses "ROOT.cm.N" where N is a positive day count.
func ParseSymbol(raw string) (Symbol, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] != ConstantMaturityTag {
		return Symbol{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	days, err := strconv.Atoi(parts[2])
	if err != nil || days <= 0 {
		return Symbol{}, fmt.Errorf("%w: %q: maturity must be a positive day count", ErrInvalidSymbol, raw)
	}
	return Symbol{Root: parts[0], MaturityDays: days}, nil
}

// MaturityDays parses just the day count of a constant-maturity symbol.
func MaturityDays(raw string) (int, error) {
	sym, err := ParseSymbol(raw)
	if err != nil {
		return 0, err
	}
	return sym.MaturityDays, nil
}

// Options narrows the contracts considered by Build.
type Options struct {
	// MatchRoot keeps only definitions whose raw symbol starts with the
	// symbol's root. Useful when definitions of several products are mixed.
	MatchRoot bool
}

type contract struct {
	id         uint32
	expiration domain.Date
	live       domain.Date
}

// Build returns the roll windows of symbol over [start, end). All dates are
// UTC calendar dates. On day d a contract is live once its definition was
// received (ts_recv date <= d); the target maturity is d + N days; the next
// contract is the live future expiring earliest on or after the target and
// the pre contract is the live future expiring latest before it. Runs of
// days with the same pair form one window, days with no pair are skipped,
// and the final window closes at end.
func Build(symbol string, defs []domain.InstrumentDefinition, start, end domain.Date, opts Options) ([]domain.RollWindow, error) {
	sym, err := ParseSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start=%s end=%s", ErrInvalidRange, start, end)
	}

	contracts := futures(defs, sym, opts)

	var (
		windows []domain.RollWindow
		current *domain.RollWindow
	)
	for day := start; day.Before(end); day = day.AddDays(1) {
		pre, next, ok := straddle(contracts, day, day.AddDays(sym.MaturityDays))
		if !ok {
			continue
		}
		if current != nil && current.Pre == pre && current.Next == next {
			continue
		}
		if current != nil {
			current.D1 = day
			windows = append(windows, *current)
		}
		current = &domain.RollWindow{D0: day, Pre: pre, Next: next}
	}
	if current != nil {
		current.D1 = end
		windows = append(windows, *current)
	}
	return windows, nil
}

// futures keeps outright futures (spreads and options are ignored), one
// entry per instrument id using its earliest receipt, ordered by expiration.
func futures(defs []domain.InstrumentDefinition, sym Symbol, opts Options) []contract {
	byID := make(map[uint32]contract)
	for _, def := range defs {
		if !def.IsFuture() {
			continue
		}
		if opts.MatchRoot && !strings.HasPrefix(def.RawSymbol, sym.Root) {
			continue
		}
		c := contract{
			id:         def.InstrumentID,
			expiration: domain.DateOf(def.Expiration.UTC()),
			live:       domain.DateOf(def.TsRecv.UTC()),
		}
		if prev, ok := byID[c.id]; ok && !c.live.Before(prev.live) {
			continue
		}
		byID[c.id] = c
	}

	out := make([]contract, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].expiration != out[j].expiration {
			return out[i].expiration.Before(out[j].expiration)
		}
		return out[i].id < out[j].id
	})
	return out
}

// straddle finds the live pair around target. contracts must be sorted by
// expiration.
func straddle(contracts []contract, day, target domain.Date) (pre, next uint32, ok bool) {
	havePre := false
	for _, c := range contracts {
		if c.live.After(day) {
			continue
		}
		if c.expiration.Before(target) {
			pre, havePre = c.id, true
			continue
		}
		if !havePre {
			return 0, 0, false
		}
		return pre, c.id, true
	}
	return 0, 0, false
}

// Instruments lists the distinct instrument ids referenced by windows in
// first-seen order.
func Instruments(windows []domain.RollWindow) []uint32 {
	seen := make(map[uint32]bool)
	var ids []uint32
	for _, w := range windows {
		for _, id := range []uint32{w.Pre, w.Next} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
