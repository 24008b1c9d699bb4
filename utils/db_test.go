package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type priced struct {
	Amount decimal.Decimal `bson:"amount"`
}

func TestDecimalCodecRoundTrip(t *testing.T) {
	reg := NewRegistry()
	in := priced{Amount: decimal.RequireFromString("1234.56")}

	raw, err := bson.MarshalWithRegistry(reg, in)
	require.NoError(t, err)

	var out priced
	require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
	assert.True(t, in.Amount.Equal(out.Amount), "got %s", out.Amount)
}

func TestDecimalCodecReadsLegacyNumbers(t *testing.T) {
	reg := NewRegistry()

	raw, err := bson.Marshal(bson.M{"amount": 99.5})
	require.NoError(t, err)
	var out priced
	require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
	assert.Equal(t, "99.5", out.Amount.String())

	raw, err = bson.Marshal(bson.M{"amount": int32(40)})
	require.NoError(t, err)
	require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
	assert.Equal(t, "40", out.Amount.String())
}
