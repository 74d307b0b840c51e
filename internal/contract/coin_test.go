package contract

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	admin   = "0xAdmin"
	student = "0xStudent"
	other   = "0xOther"
)

func TestNewCoinCreditsDeployer(t *testing.T) {
	coin := NewCoin(admin, big.NewInt(1000))

	require.Equal(t, "CampusCoin", coin.Name())
	require.Equal(t, "CPC", coin.Symbol())
	require.True(t, coin.IsAdmin(admin))
	require.Equal(t, int64(1000), coin.BalanceOf(admin).Int64())
	require.Equal(t, int64(1000), coin.TotalSupply().Int64())
}

func TestMintRequiresAdmin(t *testing.T) {
	coin := NewCoin(admin, nil)

	err := coin.Mint(other, student, big.NewInt(5))
	require.ErrorIs(t, err, ErrNotAdmin)
	require.Zero(t, coin.BalanceOf(student).Sign())

	require.NoError(t, coin.Mint(admin, student, big.NewInt(5)))
	require.Equal(t, int64(5), coin.BalanceOf(student).Int64())
	require.Equal(t, int64(5), coin.TotalSupply().Int64())
}

func TestMintRejectsBadInput(t *testing.T) {
	coin := NewCoin(admin, nil)

	require.ErrorIs(t, coin.Mint(admin, "", big.NewInt(1)), ErrZeroAddress)
	require.ErrorIs(t, coin.Mint(admin, student, big.NewInt(-1)), ErrNegativeAmount)
	require.ErrorIs(t, coin.Mint(admin, student, nil), ErrNegativeAmount)
}

func TestStudentAllowListIsAdminGated(t *testing.T) {
	coin := NewCoin(admin, nil)

	require.ErrorIs(t, coin.AddStudent(other, student), ErrNotAdmin)
	require.False(t, coin.IsStudent(student))

	require.NoError(t, coin.AddStudent(admin, student))
	require.True(t, coin.IsStudent(student))

	require.NoError(t, coin.RemoveStudent(admin, student))
	require.False(t, coin.IsStudent(student))
}

func TestAddressesAreCaseInsensitive(t *testing.T) {
	coin := NewCoin(admin, nil)

	require.NoError(t, coin.Mint(admin, "0xABCDEF", big.NewInt(7)))
	require.Equal(t, int64(7), coin.BalanceOf("0xabcdef").Int64())
	require.True(t, coin.IsAdmin("0XADMIN"))
}

func TestTransferNeverGoesNegative(t *testing.T) {
	coin := NewCoin(admin, big.NewInt(10))

	err := coin.Transfer(admin, student, big.NewInt(11))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, int64(10), coin.BalanceOf(admin).Int64())

	require.NoError(t, coin.Transfer(admin, student, big.NewInt(4)))
	require.Equal(t, int64(6), coin.BalanceOf(admin).Int64())
	require.Equal(t, int64(4), coin.BalanceOf(student).Int64())
	require.Equal(t, int64(10), coin.TotalSupply().Int64(), "transfer must not change supply")
}

func TestBurnReducesSupply(t *testing.T) {
	coin := NewCoin(admin, big.NewInt(10))

	require.ErrorIs(t, coin.Burn(admin, big.NewInt(11)), ErrInsufficientBalance)
	require.NoError(t, coin.Burn(admin, big.NewInt(3)))
	require.Equal(t, int64(7), coin.BalanceOf(admin).Int64())
	require.Equal(t, int64(7), coin.TotalSupply().Int64())
}

func TestBurnFromIsAdminGated(t *testing.T) {
	coin := NewCoin(admin, nil)
	require.NoError(t, coin.Mint(admin, student, big.NewInt(10)))

	require.ErrorIs(t, coin.BurnFrom(other, student, big.NewInt(5)), ErrNotAdmin)
	require.Equal(t, int64(10), coin.BalanceOf(student).Int64())

	require.ErrorIs(t, coin.BurnFrom(admin, student, big.NewInt(11)), ErrInsufficientBalance)
	require.ErrorIs(t, coin.BurnFrom(admin, "", big.NewInt(1)), ErrZeroAddress)
	require.ErrorIs(t, coin.BurnFrom(admin, student, big.NewInt(-1)), ErrNegativeAmount)

	require.NoError(t, coin.BurnFrom(admin, student, big.NewInt(4)))
	require.Equal(t, int64(6), coin.BalanceOf(student).Int64())
	require.Equal(t, int64(6), coin.TotalSupply().Int64())
}
