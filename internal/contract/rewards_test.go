package contract

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*Coin, *RewardRegistry) {
	t.Helper()
	coin := NewCoin(admin, nil)
	require.NoError(t, coin.AddStudent(admin, student))
	return coin, NewRewardRegistry(coin, admin)
}

func TestCreateActivityAssignsSequentialIDs(t *testing.T) {
	_, registry := newRegistry(t)

	first, err := registry.CreateActivity(admin, "Cleanup", "beach", big.NewInt(10))
	require.NoError(t, err)
	second, err := registry.CreateActivity(admin, "Donation", "blood drive", big.NewInt(20))
	require.NoError(t, err)
	require.Equal(t, uint64(0), first)
	require.Equal(t, uint64(1), second)

	activity, err := registry.GetActivity(second)
	require.NoError(t, err)
	require.Equal(t, "Donation", activity.Name)
	require.True(t, activity.IsActive)
}

func TestCreateActivityValidation(t *testing.T) {
	_, registry := newRegistry(t)

	_, err := registry.CreateActivity(other, "Cleanup", "", big.NewInt(1))
	require.ErrorIs(t, err, ErrNotAdmin)

	_, err = registry.CreateActivity(admin, "", "", big.NewInt(1))
	require.ErrorIs(t, err, ErrEmptyActivityName)

	_, err = registry.CreateActivity(admin, "Cleanup", "", big.NewInt(-1))
	require.ErrorIs(t, err, ErrNegativeAmount)
}

func TestCompleteActivityIsWriteOnce(t *testing.T) {
	_, registry := newRegistry(t)
	id, err := registry.CreateActivity(admin, "Cleanup", "", big.NewInt(10))
	require.NoError(t, err)

	require.NoError(t, registry.CompleteActivity(admin, student, id))
	require.True(t, registry.HasCompleted(student, id))

	err = registry.CompleteActivity(admin, student, id)
	require.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestCompleteActivityRequiresStudentRole(t *testing.T) {
	_, registry := newRegistry(t)
	id, err := registry.CreateActivity(admin, "Cleanup", "", big.NewInt(10))
	require.NoError(t, err)

	err = registry.CompleteActivity(admin, other, id)
	require.ErrorIs(t, err, ErrNotStudent)
	require.False(t, registry.HasCompleted(other, id))
}

func TestCompleteActivityRejectsInactive(t *testing.T) {
	_, registry := newRegistry(t)
	id, err := registry.CreateActivity(admin, "Cleanup", "", big.NewInt(10))
	require.NoError(t, err)
	require.NoError(t, registry.UpdateActivity(admin, id, "Cleanup", "", big.NewInt(10), false))

	err = registry.CompleteActivity(admin, student, id)
	require.ErrorIs(t, err, ErrActivityInactive)
}

func TestCompleteActivityUnknownID(t *testing.T) {
	_, registry := newRegistry(t)
	err := registry.CompleteActivity(admin, student, 99)
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestBatchCompleteIsAllOrNothing(t *testing.T) {
	coin, registry := newRegistry(t)
	require.NoError(t, coin.AddStudent(admin, "0xSecond"))
	id, err := registry.CreateActivity(admin, "Cleanup", "", big.NewInt(10))
	require.NoError(t, err)

	// other is not allow-listed, so the whole batch must be rejected.
	err = registry.BatchCompleteActivity(admin, []string{student, other}, id)
	require.ErrorIs(t, err, ErrNotStudent)
	require.False(t, registry.HasCompleted(student, id))

	err = registry.BatchCompleteActivity(admin, []string{student, "0xsecond", "0xSECOND"}, id)
	require.ErrorIs(t, err, ErrAlreadyCompleted, "in-batch duplicates must fail the batch")
	require.False(t, registry.HasCompleted(student, id))

	require.NoError(t, registry.BatchCompleteActivity(admin, []string{student, "0xSecond"}, id))
	require.True(t, registry.HasCompleted(student, id))
	require.True(t, registry.HasCompleted("0xsecond", id))
}
