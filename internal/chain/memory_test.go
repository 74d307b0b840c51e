package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

const authority = "0xAuthority"

func TestMemoryGatewayMintAndBalance(t *testing.T) {
	gw := NewMemoryGateway(authority)
	ctx := context.Background()

	amount, err := ToBaseUnits(10)
	require.NoError(t, err)

	hash, err := gw.MintTokens(ctx, "0xWallet", amount)
	require.NoError(t, err)
	require.Len(t, hash, 66)

	balance, err := gw.BalanceOf(ctx, "0xWallet")
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(amount))
}

func TestMemoryGatewayTxHashesAreUnique(t *testing.T) {
	gw := NewMemoryGateway(authority)
	ctx := context.Background()
	amount, err := ToBaseUnits(1)
	require.NoError(t, err)

	first, err := gw.MintTokens(ctx, "0xWallet", amount)
	require.NoError(t, err)
	second, err := gw.MintTokens(ctx, "0xWallet", amount)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestMemoryGatewayBurnSpendsBalance(t *testing.T) {
	gw := NewMemoryGateway(authority)
	ctx := context.Background()

	amount, err := ToBaseUnits(10)
	require.NoError(t, err)
	_, err = gw.MintTokens(ctx, "0xWallet", amount)
	require.NoError(t, err)

	spend, err := ToBaseUnits(4)
	require.NoError(t, err)
	hash, err := gw.BurnTokens(ctx, "0xWallet", spend)
	require.NoError(t, err)
	require.Len(t, hash, 66)

	remaining, err := ToBaseUnits(6)
	require.NoError(t, err)
	balance, err := gw.BalanceOf(ctx, "0xWallet")
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(remaining))

	// Burning more than the balance reverts.
	_, err = gw.BurnTokens(ctx, "0xWallet", amount)
	require.ErrorIs(t, err, ErrReverted)
}

func TestMemoryGatewayStudentRole(t *testing.T) {
	gw := NewMemoryGateway(authority)
	ctx := context.Background()

	enrolled, err := gw.IsStudent(ctx, "0xWallet")
	require.NoError(t, err)
	require.False(t, enrolled)

	_, err = gw.AddStudent(ctx, "0xWallet")
	require.NoError(t, err)

	enrolled, err = gw.IsStudent(ctx, "0xWallet")
	require.NoError(t, err)
	require.True(t, enrolled)
}

func TestMemoryGatewayRegistryFlow(t *testing.T) {
	gw := NewMemoryGateway(authority)
	ctx := context.Background()

	reward, err := ToBaseUnits(5)
	require.NoError(t, err)
	id, err := gw.CreateActivity(ctx, "Cleanup", "beach", reward)
	require.NoError(t, err)

	_, err = gw.AddStudent(ctx, "0xWallet")
	require.NoError(t, err)

	done, err := gw.HasCompleted(ctx, "0xWallet", id)
	require.NoError(t, err)
	require.False(t, done)

	_, err = gw.CompleteActivity(ctx, "0xWallet", id)
	require.NoError(t, err)

	done, err = gw.HasCompleted(ctx, "0xWallet", id)
	require.NoError(t, err)
	require.True(t, done)

	_, err = gw.CompleteActivity(ctx, "0xWallet", id)
	require.ErrorIs(t, err, ErrReverted)
}

func TestMemoryGatewayRevertsMapToErrReverted(t *testing.T) {
	gw := NewMemoryGateway(authority)
	ctx := context.Background()

	_, err := gw.MintTokens(ctx, "", big.NewInt(1))
	require.ErrorIs(t, err, ErrReverted)

	_, err = gw.CompleteActivity(ctx, "0xWallet", 99)
	require.ErrorIs(t, err, ErrReverted)
}

func TestMemoryGatewayHonorsContextCancellation(t *testing.T) {
	gw := NewMemoryGateway(authority)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.MintTokens(ctx, "0xWallet", big.NewInt(1))
	require.ErrorIs(t, err, context.Canceled)
}
