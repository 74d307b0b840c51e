package chain

import (
	"fmt"
	"math/big"

	"github.com/noah-isme/campus-coin-api/internal/contract"
)

// tokenUnit is 10^decimals, the number of base units in one whole token.
var tokenUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(contract.TokenDecimals), nil)

// ToBaseUnits converts a whole-token amount into the smallest indivisible
// on-chain unit. All amounts cross the chain boundary in base units; mixing
// scales between the mint call and the balance read is the bug class this
// package exists to prevent.
func ToBaseUnits(tokens int) (*big.Int, error) {
	if tokens < 0 {
		return nil, fmt.Errorf("token amount must not be negative: %d", tokens)
	}
	return new(big.Int).Mul(big.NewInt(int64(tokens)), tokenUnit), nil
}

// FromBaseUnits converts a base-unit balance into a whole-token decimal for
// the advisory cache. Precision beyond float64 is not needed for display;
// every authoritative comparison stays in *big.Int.
func FromBaseUnits(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	value := new(big.Float).SetInt(amount)
	value.Quo(value, new(big.Float).SetInt(tokenUnit))
	result, _ := value.Float64()
	return result
}
