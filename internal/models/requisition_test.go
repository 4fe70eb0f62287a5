package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    RequisitionStatus
		to      RequisitionStatus
		allowed bool
	}{
		{RequisitionStatusPendingBlock, RequisitionStatusPendingDistrict, true},
		{RequisitionStatusPendingBlock, RequisitionStatusRejectedBlock, true},
		{RequisitionStatusPendingBlock, RequisitionStatusApproved, false},
		{RequisitionStatusRejectedBlock, RequisitionStatusPendingDistrict, true},
		{RequisitionStatusRejectedBlock, RequisitionStatusRejectedDistrict, false},
		{RequisitionStatusPendingDistrict, RequisitionStatusApproved, true},
		{RequisitionStatusPendingDistrict, RequisitionStatusRejectedDistrict, true},
		{RequisitionStatusRejectedDistrict, RequisitionStatusApproved, true},
		{RequisitionStatusApproved, RequisitionStatusCompleted, true},
		{RequisitionStatusApproved, RequisitionStatusPendingBlock, false},
		{RequisitionStatusCompleted, RequisitionStatusApproved, false},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.allowed, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestReviewTierFor(t *testing.T) {
	block, ok := ReviewTierFor(RoleBlock)
	require.True(t, ok)
	require.Equal(t, RequisitionStatusPendingBlock, block.PendingStatus)
	require.Equal(t, RequisitionStatusPendingDistrict, block.ForwardStatus)
	require.Equal(t, RequisitionStatusRejectedBlock, block.RejectedStatus)
	require.Equal(t, "block_remark", block.RemarkColumn)

	district, ok := ReviewTierFor(RoleDistrict)
	require.True(t, ok)
	require.Equal(t, RequisitionStatusPendingDistrict, district.PendingStatus)
	require.Equal(t, RequisitionStatusApproved, district.ForwardStatus)
	require.Equal(t, RequisitionStatusRejectedDistrict, district.RejectedStatus)
	require.Equal(t, "district_remark", district.RemarkColumn)

	_, ok = ReviewTierFor(RoleState)
	require.False(t, ok)
	_, ok = ReviewTierFor(RoleSchool)
	require.False(t, ok)
}

func TestRequisitionRemaining(t *testing.T) {
	r := &Requisition{Quantity: 500, Received: 300}
	require.Equal(t, 200, r.Remaining())

	r.Received = 500
	require.Equal(t, 0, r.Remaining())

	r.Received = 600
	require.Equal(t, 0, r.Remaining())
}
