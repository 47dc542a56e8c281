package scanner

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSerialKindFor(t *testing.T) {
	require.Equal(t, SerialPoultry, SerialKindFor("Organic Chicken"))
	require.Equal(t, SerialPoultry, SerialKindFor("Maple Leaf Chicken"))
	require.Equal(t, SerialPoultry, SerialKindFor(" poultry "))
	require.Equal(t, SerialBeefPork, SerialKindFor("Beef"))
	require.Equal(t, SerialBeefPork, SerialKindFor("pork"))
	require.Equal(t, SerialSynthesized, SerialKindFor("Halal"))
	require.Equal(t, SerialSynthesized, SerialKindFor("Seafood"))
	require.Equal(t, SerialSynthesized, SerialKindFor(""))
}

func TestExtractSerial(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	synth := strconv.FormatInt(now.UnixMilli(), 10)

	s, ok := ExtractSerial(SerialPoultry, []string{"LOT 12345678901234"}, now)
	require.True(t, ok)
	require.Equal(t, "12345678901234", s)

	// The number after the anchor wins over an earlier unanchored one
	s, ok = ExtractSerial(SerialPoultry, []string{"98765432109876", "SERIAL", "12345678901234"}, now)
	require.True(t, ok)
	require.Equal(t, "12345678901234", s)

	s, ok = ExtractSerial(SerialPoultry, []string{"X 12345678901234 Y"}, now)
	require.True(t, ok)
	require.Equal(t, "12345678901234", s)

	s, ok = ExtractSerial(SerialPoultry, []string{"ID: 31396056"}, now)
	require.False(t, ok)
	require.Equal(t, synth, s)

	s, ok = ExtractSerial(SerialBeefPork, []string{"111111111111", "SN: 201234567890"}, now)
	require.True(t, ok)
	require.Equal(t, "201234567890", s)

	s, ok = ExtractSerial(SerialBeefPork, []string{"201234567890"}, now)
	require.True(t, ok)
	require.Equal(t, "201234567890", s)

	// 14 digits is not a 12 digit serial
	s, ok = ExtractSerial(SerialBeefPork, []string{"12345678901234"}, now)
	require.False(t, ok)
	require.Equal(t, synth, s)

	s, ok = ExtractSerial(SerialSynthesized, []string{"SN 201234567890"}, now)
	require.True(t, ok)
	require.Equal(t, synth, s)
}

func TestSerialAsInt(t *testing.T) {
	v, ok := serialAsInt("201234567890")
	require.True(t, ok)
	require.EqualValues(t, 201234567890, v)

	_, ok = serialAsInt("0")
	require.False(t, ok)
	_, ok = serialAsInt("AB12")
	require.False(t, ok)
}
