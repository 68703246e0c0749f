package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestCodecReplacesDefault(t *testing.T) {
	registered := encoding.GetCodec(CodecName)
	require.NotNil(t, registered)
	assert.IsType(t, codec{}, registered)
}

func TestApplyRequestWireFormat(t *testing.T) {
	data, err := encoding.GetCodec(CodecName).Marshal(&ApplyRequest{AccountId: 1, Kind: EntryKindDebit, Amount: "150.00"})
	require.NoError(t, err)

	want := protowire.AppendTag(nil, 1, protowire.VarintType)
	want = protowire.AppendVarint(want, 1)
	want = protowire.AppendTag(want, 2, protowire.BytesType)
	want = protowire.AppendString(want, "debit")
	want = protowire.AppendTag(want, 3, protowire.BytesType)
	want = protowire.AppendString(want, "150.00")
	assert.Equal(t, want, data)
}

func TestListEntriesResponseRoundTrip(t *testing.T) {
	in := &ListEntriesResponse{
		Entries: []*Entry{
			{Id: 9, AccountId: -3, RefId: "5f0c", Kind: EntryKindCredit, Amount: "1.00", Description: "deposit", BalanceAfter: "1.00", CreatedAt: "2026-03-01T09:30:15Z"},
			{Id: 8, AccountId: -3, Kind: EntryKindDebit, Amount: "0.50", Description: "fee", Category: "Bank", BalanceAfter: "0.00"},
		},
		NextBeforeId: 8,
	}
	c := encoding.GetCodec(CodecName)
	data, err := c.Marshal(in)
	require.NoError(t, err)

	var out ListEntriesResponse
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, in, &out)
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	data := protowire.AppendTag(nil, 1, protowire.VarintType)
	data = protowire.AppendVarint(data, 42)
	data = protowire.AppendTag(data, 15, protowire.BytesType)
	data = protowire.AppendString(data, "from a newer client")

	var req GetBalanceRequest
	require.NoError(t, req.Unmarshal(data))
	assert.EqualValues(t, 42, req.AccountId)
}

func TestMalformedInputIsRejected(t *testing.T) {
	var req GetBalanceRequest
	assert.Error(t, req.Unmarshal([]byte{0x08}), "truncated varint")

	wrongType := protowire.AppendTag(nil, 1, protowire.BytesType)
	wrongType = protowire.AppendString(wrongType, "1")
	assert.Error(t, req.Unmarshal(wrongType))
}

func TestOtherProtobufMessagesStillWork(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	data, err := c.Marshal(&healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING})
	require.NoError(t, err)

	var got healthpb.HealthCheckResponse
	require.NoError(t, c.Unmarshal(data, &got))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, got.GetStatus())

	_, err = c.Marshal(struct{}{})
	assert.Error(t, err)
}
