package ledger

import "github.com/holiman/uint256"

func add(x, y *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return sum, nil
}

func sub(x, y *uint256.Int) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, ErrUnderflow
	}
	return diff, nil
}

// scale returns amount * 10^decimals. uint256.Exp wraps silently, so the
// power is built by checked multiplication instead.
func scale(amount *uint256.Int, decimals uint8) (*uint256.Int, error) {
	ten := uint256.NewInt(10)
	out := new(uint256.Int).Set(amount)
	for i := uint8(0); i < decimals; i++ {
		var overflow bool
		if out, overflow = new(uint256.Int).MulOverflow(out, ten); overflow {
			return nil, ErrOverflow
		}
	}
	return out, nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
