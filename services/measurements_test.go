package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/settleline/earnout/crypto"
	"github.com/settleline/earnout/tdx"
)

func TestStaticMeasurementSource(t *testing.T) {
	measurements := PublishedMeasurements{
		{
			MeasurementID: "build-1",
			Measurements: map[int]MeasurementValue{
				0: {Expected: "0102"},
				1: {Expected: "0304"},
			},
		},
		{
			MeasurementID: "build-2",
			Measurements: map[int]MeasurementValue{
				0: {Expected: "0506"},
				1: {Expected: "0708"},
			},
		},
	}

	source := NewStaticMeasurementSource(measurements)

	retrieved, err := source.GetAllowedMeasurements()
	require.NoError(t, err)
	require.Len(t, retrieved, 2)
	require.Equal(t, "build-1", retrieved[0].MeasurementID)
	require.Equal(t, "0102", retrieved[0].Measurements[0].Expected)
}

func TestDevMeasurementSource(t *testing.T) {
	source := DevMeasurementSource()

	measurements, err := source.GetAllowedMeasurements()
	require.NoError(t, err)
	require.Len(t, measurements, 1)

	// Dev source should have registers 0-4 with values "00"-"04",
	// matching what tdx.DummyProvider produces.
	m := measurements[0].Measurements
	require.Equal(t, "00", m[tdx.RegisterMRTD].Expected)
	require.Equal(t, "01", m[tdx.RegisterRTMR0].Expected)
	require.Equal(t, "02", m[tdx.RegisterRTMR1].Expected)
	require.Equal(t, "03", m[tdx.RegisterRTMR2].Expected)
	require.Equal(t, "04", m[tdx.RegisterRTMR3].Expected)
}

func TestVerifyMeasurementsMatch_Success(t *testing.T) {
	allowed := PublishedMeasurements{
		{
			MeasurementID: "build-1",
			Measurements: map[int]MeasurementValue{
				0: {Expected: "01"},
				1: {Expected: "02"},
			},
		},
		{
			MeasurementID: "build-2",
			Measurements: map[int]MeasurementValue{
				0: {Expected: "03"},
				1: {Expected: "04"},
			},
		},
	}

	// Actual matches first allowed set
	actual := tdx.Measurements{0: []byte{0x01}, 1: []byte{0x02}}

	matched, err := VerifyMeasurementsMatch(allowed, actual)
	require.NoError(t, err)
	require.Equal(t, "build-1", matched.MeasurementID)
}

func TestVerifyMeasurementsMatch_SecondSet(t *testing.T) {
	allowed := PublishedMeasurements{
		{
			MeasurementID: "build-1",
			Measurements: map[int]MeasurementValue{
				0: {Expected: "01"},
				1: {Expected: "02"},
			},
		},
		{
			MeasurementID: "build-2",
			Measurements: map[int]MeasurementValue{
				0: {Expected: "03"},
				1: {Expected: "04"},
			},
		},
	}

	// Actual matches second allowed set
	actual := tdx.Measurements{0: []byte{0x03}, 1: []byte{0x04}}

	matched, err := VerifyMeasurementsMatch(allowed, actual)
	require.NoError(t, err)
	require.Equal(t, "build-2", matched.MeasurementID)
}

func TestVerifyMeasurementsMatch_NoMatch(t *testing.T) {
	allowed := PublishedMeasurements{
		{
			MeasurementID: "build-1",
			Measurements: map[int]MeasurementValue{
				0: {Expected: "01"},
				1: {Expected: "02"},
			},
		},
	}

	actual := tdx.Measurements{0: []byte{0xFF}, 1: []byte{0xFF}}

	_, err := VerifyMeasurementsMatch(allowed, actual)
	require.Error(t, err)
}

func TestVerifyMeasurementsMatch_PartialMatch(t *testing.T) {
	allowed := PublishedMeasurements{
		{
			MeasurementID: "build-1",
			Measurements: map[int]MeasurementValue{
				0: {Expected: "01"},
				1: {Expected: "02"},
			},
		},
	}

	// One matching and one non-matching register
	actual := tdx.Measurements{0: []byte{0x01}, 1: []byte{0xFF}}

	_, err := VerifyMeasurementsMatch(allowed, actual)
	require.Error(t, err)
}

func TestVerifyMeasurementsMatch_EmptyAllowed(t *testing.T) {
	allowed := PublishedMeasurements{}
	actual := tdx.Measurements{0: []byte{0x01}}

	_, err := VerifyMeasurementsMatch(allowed, actual)
	require.Error(t, err)
}

func TestVerifyMeasurementsMatch_MissingRegister(t *testing.T) {
	allowed := PublishedMeasurements{
		{
			MeasurementID: "build-1",
			Measurements: map[int]MeasurementValue{
				0: {Expected: "01"},
				1: {Expected: "02"},
			},
		},
	}
	// Actual only has register 0
	actual := tdx.Measurements{0: []byte{0x01}}

	_, err := VerifyMeasurementsMatch(allowed, actual)
	require.Error(t, err)
}

func TestMeasurementEntry_ToMeasurements(t *testing.T) {
	entry := MeasurementEntry{
		MeasurementID: "build-1",
		Measurements: map[int]MeasurementValue{
			0: {Expected: "0102"},
			1: {Expected: "0304"},
		},
	}

	m, err := entry.ToMeasurements()
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, m[0])
	require.Equal(t, []byte{0x03, 0x04}, m[1])
}

func TestMeasurementEntry_ToMeasurements_InvalidHex(t *testing.T) {
	entry := MeasurementEntry{
		MeasurementID: "build-1",
		Measurements: map[int]MeasurementValue{
			0: {Expected: "invalid"},
		},
	}

	_, err := entry.ToMeasurements()
	require.Error(t, err)
}

func TestReportDataForIdentity(t *testing.T) {
	pubKey := crypto.PublicKey(bytes.Repeat([]byte{0xAB}, crypto.PublicKeySize))

	data := ReportDataForIdentity(pubKey)

	// First 32 bytes carry the hash, the rest stays zero
	require.NotEqual(t, make([]byte, 32), data[:32])
	require.Equal(t, make([]byte, 32), data[32:])

	// Same key gives the same report data
	data2 := ReportDataForIdentity(pubKey)
	require.Equal(t, data, data2)

	// A different key gives different report data
	other := crypto.PublicKey(bytes.Repeat([]byte{0xCD}, crypto.PublicKeySize))
	data3 := ReportDataForIdentity(other)
	require.NotEqual(t, data, data3)
}
