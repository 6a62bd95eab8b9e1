// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rhythmset/internal/edf"
)

func writeTwoChannelFile(t *testing.T, records int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "04015.edf")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	hdr := edf.Header{
		PatientID:          "04015",
		RecordingID:        "synthetic",
		StartTime:          time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		DataRecordDuration: time.Second,
		Signals: []edf.Signal{
			{Label: "ECG1", PhysicalDimension: "mV", PhysicalMin: -5, PhysicalMax: 5, DigitalMin: -32768, DigitalMax: 32767, SamplesPerRecord: 250},
			{Label: "ECG2", PhysicalDimension: "mV", PhysicalMin: -5, PhysicalMax: 5, DigitalMin: -32768, DigitalMax: 32767, SamplesPerRecord: 250},
		},
	}
	ew, err := edf.Create(f, hdr)
	require.NoError(t, err)

	for r := range records {
		first := make([]float64, 250)
		second := make([]float64, 250)
		for i := range first {
			first[i] = float64(r) + float64(i)/250
			second[i] = -first[i]
		}
		require.NoError(t, ew.WriteRecord([][]float64{first, second}))
	}
	require.NoError(t, ew.Close())
	return path
}

func TestRoundTripSelectsChannel(t *testing.T) {
	path := writeTwoChannelFile(t, 3)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	er, err := edf.Open(f)
	require.NoError(t, err)

	hdr := er.Header()
	assert.Equal(t, 3, hdr.DataRecords)
	assert.Equal(t, "04015", hdr.PatientID)
	assert.Len(t, hdr.Signals, 2)
	assert.Equal(t, 768, hdr.HeaderBytes)

	fs, err := hdr.SampleRate(1)
	require.NoError(t, err)
	assert.InDelta(t, 250.0, fs, 1e-9)

	first, err := er.ReadSignal(0)
	require.NoError(t, err)
	require.Len(t, first, 750)
	assert.InDelta(t, 0.0, first[0], 0.001)
	assert.InDelta(t, 2.996, first[749], 0.001)

	second, err := er.ReadSignal(1)
	require.NoError(t, err)
	require.Len(t, second, 750)
	assert.InDelta(t, -1.5, second[375], 0.001)
}

func TestReadSignalRejectsBadIndex(t *testing.T) {
	path := writeTwoChannelFile(t, 1)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	er, err := edf.Open(f)
	require.NoError(t, err)

	_, err = er.ReadSignal(2)
	require.ErrorIs(t, err, edf.ErrSignalIndex)
	_, err = er.Header().SampleRate(-1)
	require.ErrorIs(t, err, edf.ErrSignalIndex)
}

func TestWriteRecordValidatesShape(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "bad.edf"))
	require.NoError(t, err)
	defer f.Close()

	ew, err := edf.Create(f, edf.Header{
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		Signals:            []edf.Signal{{Label: "ECG", PhysicalMin: -1, PhysicalMax: 1, DigitalMin: -2048, DigitalMax: 2047, SamplesPerRecord: 4}},
	})
	require.NoError(t, err)

	require.Error(t, ew.WriteRecord([][]float64{{0, 0, 0}}))
	require.Error(t, ew.WriteRecord([][]float64{{0, 0, 0, 0}, {0, 0, 0, 0}}))
	require.NoError(t, ew.WriteRecord([][]float64{{0, 0.5, -0.5, 1}}))
}

func TestOpenRejectsTruncatedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.edf")
	require.NoError(t, os.WriteFile(path, []byte("0       short"), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = edf.Open(f)
	assert.Error(t, err)
}
