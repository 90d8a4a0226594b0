package x402

import (
	"fmt"
	"math/big"
	"sync"
)

// Budget tracks cumulative spend against a hard ceiling, in base units.
//
// A charge is reserved before the paid retry is sent and either committed
// (server accepted the payment) or rolled back (retry failed or was never
// sent). Reserve accounts for outstanding reservations, so concurrent calls
// sharing one Budget can never jointly overrun the ceiling. All methods are
// safe for concurrent use.
type Budget struct {
	mu       sync.Mutex
	ceiling  *big.Int
	spent    *big.Int
	reserved *big.Int
}

// NewBudget creates a budget with the given ceiling in base units.
// A nil or negative ceiling is treated as zero.
func NewBudget(ceiling *big.Int) *Budget {
	c := new(big.Int)
	if ceiling != nil && ceiling.Sign() > 0 {
		c.Set(ceiling)
	}
	return &Budget{
		ceiling:  c,
		spent:    new(big.Int),
		reserved: new(big.Int),
	}
}

// Reservation is a provisional hold against a Budget. Exactly one of Commit
// or Rollback settles it; both are idempotent and the first call wins.
type Reservation struct {
	budget *Budget
	amount *big.Int
	once   sync.Once
}

// Reserve places a provisional hold for amount. It fails with
// ErrBudgetExceeded when spent plus outstanding reservations plus amount
// would breach the ceiling; nothing is held in that case.
func (b *Budget) Reserve(amount *big.Int) (*Reservation, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid reservation amount", ErrBudgetExceeded)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	prospective := new(big.Int).Add(b.spent, b.reserved)
	prospective.Add(prospective, amount)
	if prospective.Cmp(b.ceiling) > 0 {
		return nil, fmt.Errorf("%w: charge %s would exceed ceiling %s (spent %s, reserved %s)",
			ErrBudgetExceeded, amount, b.ceiling, b.spent, b.reserved)
	}

	b.reserved.Add(b.reserved, amount)
	return &Reservation{budget: b, amount: new(big.Int).Set(amount)}, nil
}

// Commit moves the held amount into spent. Call it only after the server
// confirmed the paid call succeeded.
func (r *Reservation) Commit() {
	r.once.Do(func() {
		r.budget.mu.Lock()
		defer r.budget.mu.Unlock()
		r.budget.reserved.Sub(r.budget.reserved, r.amount)
		r.budget.spent.Add(r.budget.spent, r.amount)
	})
}

// Rollback releases the hold without charging it. Call it when the paid
// retry failed or was never sent.
func (r *Reservation) Rollback() {
	r.once.Do(func() {
		r.budget.mu.Lock()
		defer r.budget.mu.Unlock()
		r.budget.reserved.Sub(r.budget.reserved, r.amount)
	})
}

// Amount returns the reserved amount.
func (r *Reservation) Amount() *big.Int {
	return new(big.Int).Set(r.amount)
}

// Spent returns the committed spend so far.
func (b *Budget) Spent() *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.spent)
}

// Ceiling returns the budget ceiling.
func (b *Budget) Ceiling() *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.ceiling)
}

// Remaining returns the headroom left: ceiling minus spent minus outstanding
// reservations.
func (b *Budget) Remaining() *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := new(big.Int).Sub(b.ceiling, b.spent)
	remaining.Sub(remaining, b.reserved)
	return remaining
}
