package ledger

import (
	"time"

	"github.com/dtroode/smartbank-server/internal/model"
	"github.com/holiman/uint256"
)

const basisPoints = 10_000

// accrual is the result of bringing an account up to date.
type accrual struct {
	account model.Account
	net     uint256.Int
	fee     uint256.Int
	changed bool
}

// interest returns the net interest and fee earned by principal over elapsed seconds.
//
//	raw = principal * rate * elapsed / (10000 * secondsPerYear)
//	fee = raw * feeBP / 10000
//	net = raw - fee
//
// Intermediate products are 512 bits wide, so only a result that does not fit
// in 256 bits reports an overflow.
func (c Config) interest(principal *uint256.Int, elapsed uint64) (net, fee uint256.Int, err error) {
	factor := new(uint256.Int).Mul(uint256.NewInt(c.InterestRateBP), uint256.NewInt(elapsed))
	denom := new(uint256.Int).Mul(uint256.NewInt(basisPoints), uint256.NewInt(c.SecondsPerYear))

	raw, overflow := new(uint256.Int).MulDivOverflow(principal, factor, denom)
	if overflow {
		return net, fee, model.ErrArithmeticOverflow
	}

	fee.MulDivOverflow(raw, uint256.NewInt(c.PerformanceFeeBP), uint256.NewInt(basisPoints))
	net.Sub(raw, &fee)

	return net, fee, nil
}

// accrue computes the state of acc at now. Time is counted in whole seconds and
// the last accrual time never moves backwards.
func (c Config) accrue(acc model.Account, now time.Time) (accrual, error) {
	res := accrual{account: acc}

	elapsed := now.Unix() - acc.LastAccrualAt.Unix()
	if elapsed <= 0 {
		return res, nil
	}

	res.account.LastAccrualAt = time.Unix(now.Unix(), 0).UTC()
	res.changed = true

	if acc.Principal.IsZero() {
		return res, nil
	}

	net, fee, err := c.interest(&acc.Principal, uint64(elapsed))
	if err != nil {
		return accrual{}, err
	}

	if _, overflow := res.account.Principal.AddOverflow(&acc.Principal, &net); overflow {
		return accrual{}, model.ErrArithmeticOverflow
	}
	res.net = net
	res.fee = fee

	return res, nil
}
