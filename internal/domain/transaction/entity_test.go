// internal/domain/transaction/entity_test.go
package transaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReferenceFromID(t *testing.T) {
	id := "01hqzx3v9k8w7e6r5t4y3u2i1o"
	assert.Equal(t, "5T4Y3U2I", ReferenceFromID(id))

	// Short ids fall back to the whole id uppercased.
	assert.Equal(t, "ABC", ReferenceFromID("abc"))
}

func TestReferenceStableForTransaction(t *testing.T) {
	txn := &Transaction{ID: "01hqzx3v9k8w7e6r5t4y3u2i1o"}
	assert.Equal(t, ReferenceFromID(txn.ID), txn.Reference())
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to TransactionStatus
		want     bool
	}{
		{StatusCreated, StatusProcessing, true},
		{StatusCreated, StatusRequireAuthentication, true},
		{StatusCreated, StatusSuccess, true},
		{StatusCreated, StatusFail, true},
		{StatusProcessing, StatusSuccess, true},
		{StatusRequireAuthentication, StatusSuccess, true},
		{StatusRequireAuthentication, StatusProcessing, true},
		{StatusSuccess, StatusRefunded, true},

		// Terminal states never move backwards.
		{StatusSuccess, StatusProcessing, false},
		{StatusSuccess, StatusCreated, false},
		{StatusFail, StatusSuccess, false},
		{StatusCanceled, StatusSuccess, false},
		{StatusRefunded, StatusSuccess, false},

		// Self transitions are not transitions.
		{StatusProcessing, StatusProcessing, false},
		{StatusSuccess, StatusSuccess, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to),
			"from=%s to=%s", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusSuccess.IsTerminal())
	assert.True(t, StatusFail.IsTerminal())
	assert.True(t, StatusCanceled.IsTerminal())
	assert.True(t, StatusRefunded.IsTerminal())

	assert.False(t, StatusCreated.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.False(t, StatusRequireAuthentication.IsTerminal())
}

func TestIsSubscriptionType(t *testing.T) {
	assert.True(t, TypeFreeSubscription.IsSubscriptionType())
	assert.True(t, TypeMonthlySubscription.IsSubscriptionType())
	assert.True(t, TypeYearlySubscription.IsSubscriptionType())
	assert.False(t, TypeTokenPackage.IsSubscriptionType())
}
