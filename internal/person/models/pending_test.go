package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "civreg/pkg/domain"
)

func detail(value any, at time.Time) PendingApprovalFieldDetails {
	return PendingApprovalFieldDetails{
		Key:         NewSubmissionKey(),
		Value:       value,
		RequestedBy: id.Requester{FacilityID: "f-100"},
		SubmittedAt: at,
	}
}

func TestStage(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var set PendingApprovalSet

	set = set.Stage(FieldNationalID, "old-nid", detail("nid-1", base))
	set = set.Stage(FieldGender, "M", detail("F", base.Add(time.Minute)))
	set = set.Stage(FieldNationalID, "old-nid", detail("nid-2", base.Add(2*time.Minute)))

	require.Len(t, set, 2)
	assert.Equal(t, []string{FieldGender, FieldNationalID}, set.Fields(), "fields stay sorted")

	pa := set.Get(FieldNationalID)
	require.NotNil(t, pa)
	assert.Equal(t, "old-nid", pa.CurrentValue, "current value frozen at first staging")
	require.Len(t, pa.Details, 2)
	assert.Equal(t, "nid-2", pa.Details[0].Value, "details ordered newest first")
	assert.Equal(t, "nid-1", pa.Details[1].Value)
}

func TestLatest(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var set PendingApprovalSet
	assert.True(t, set.Latest().IsZero())

	set = set.Stage(FieldUID, "", detail("u-1", base))
	set = set.Stage(FieldGender, "M", detail("F", base.Add(time.Hour)))
	assert.Equal(t, base.Add(time.Hour), set.Latest())
}

func TestHasValue(t *testing.T) {
	var set PendingApprovalSet
	set = set.Stage(FieldPresentAddress, Address{DivisionID: "10"},
		detail(Address{DivisionID: "10", DistrictID: "20"}, time.Now()))

	pa := set.Get(FieldPresentAddress)
	require.NotNil(t, pa)
	assert.True(t, pa.HasValue(Address{DivisionID: "10", DistrictID: "20"}))
	assert.False(t, pa.HasValue(Address{DivisionID: "10", DistrictID: "99"}))
}

func TestRemoveValue(t *testing.T) {
	base := time.Now()
	var set PendingApprovalSet
	set = set.Stage(FieldNationalID, "", detail("nid-1", base))
	set = set.Stage(FieldNationalID, "", detail("nid-2", base.Add(time.Second)))

	t.Run("removes only the matching proposal", func(t *testing.T) {
		out, removed := set.Clone().RemoveValue(FieldNationalID, "nid-1")
		assert.Equal(t, 1, removed)
		pa := out.Get(FieldNationalID)
		require.NotNil(t, pa)
		require.Len(t, pa.Details, 1)
		assert.Equal(t, "nid-2", pa.Details[0].Value)
	})

	t.Run("entry vanishes with its last proposal", func(t *testing.T) {
		out, removed := set.Clone().RemoveValue(FieldNationalID, "nid-1")
		out, removed2 := out.RemoveValue(FieldNationalID, "nid-2")
		assert.Equal(t, 1, removed)
		assert.Equal(t, 1, removed2)
		assert.Nil(t, out.Get(FieldNationalID))
		assert.True(t, out.IsEmpty())
	})

	t.Run("unknown value removes nothing", func(t *testing.T) {
		out, removed := set.Clone().RemoveValue(FieldNationalID, "nid-9")
		assert.Zero(t, removed)
		require.NotNil(t, out.Get(FieldNationalID))
		assert.Len(t, out.Get(FieldNationalID).Details, 2)
	})

	t.Run("unknown field removes nothing", func(t *testing.T) {
		out, removed := set.Clone().RemoveValue(FieldGender, "F")
		assert.Zero(t, removed)
		assert.Len(t, out, 1)
	})
}

func TestRemoveField(t *testing.T) {
	var set PendingApprovalSet
	set = set.Stage(FieldUID, "", detail("u-1", time.Now()))
	set = set.Stage(FieldGender, "M", detail("F", time.Now()))

	out := set.RemoveField(FieldUID)
	assert.Nil(t, out.Get(FieldUID))
	assert.NotNil(t, out.Get(FieldGender))
}

func TestCloneIsolation(t *testing.T) {
	var set PendingApprovalSet
	set = set.Stage(FieldUID, "", detail("u-1", time.Now()))

	cp := set.Clone()
	cp, _ = cp.RemoveValue(FieldUID, "u-1")

	assert.True(t, cp.IsEmpty())
	assert.Len(t, set.Get(FieldUID).Details, 1, "clone mutations must not leak back")
}

func TestPendingJSONRoundTrip(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var set PendingApprovalSet
	set = set.Stage(FieldNationalID, "old-nid", detail("nid-1", base))
	set = set.Stage(FieldPresentAddress, Address{DivisionID: "10"},
		detail(Address{DivisionID: "10", DistrictID: "20"}, base.Add(time.Minute)))
	set = set.Stage(FieldPhoneNumber, PhoneNumber{},
		detail(PhoneNumber{CountryCode: "880", Number: "1712345678"}, base.Add(2*time.Minute)))

	data, err := json.Marshal(set)
	require.NoError(t, err)

	var decoded PendingApprovalSet
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Len(t, decoded, 3)
	assert.Equal(t, "old-nid", decoded.Get(FieldNationalID).CurrentValue)
	assert.Equal(t, "nid-1", decoded.Get(FieldNationalID).Details[0].Value)

	addr := decoded.Get(FieldPresentAddress)
	require.NotNil(t, addr)
	assert.Equal(t, Address{DivisionID: "10"}, addr.CurrentValue, "block values decode to their native type")
	assert.Equal(t, Address{DivisionID: "10", DistrictID: "20"}, addr.Details[0].Value)

	phone := decoded.Get(FieldPhoneNumber)
	require.NotNil(t, phone)
	assert.Equal(t, PhoneNumber{}, phone.CurrentValue)
	assert.Equal(t, PhoneNumber{CountryCode: "880", Number: "1712345678"}, phone.Details[0].Value)
	assert.Equal(t, id.Requester{FacilityID: "f-100"}, phone.Details[0].RequestedBy)
	assert.True(t, phone.Details[0].SubmittedAt.Equal(base.Add(2*time.Minute)))
}
