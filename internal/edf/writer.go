// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// Writer writes EDF files.
type Writer struct {
	w           io.WriteSeeker
	hdr         Header
	dataRecords int
}

// Create writes a provisional header and returns a writer for data records.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	if hdr.Version == "" {
		hdr.Version = "0"
	}
	hdr.DataRecords = -1
	hdr.Signals = append([]Signal(nil), hdr.Signals...)

	ew := &Writer{w: w, hdr: hdr}
	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return ew, nil
}

// WriteRecord appends one data record holding samples for every signal.
func (ew *Writer) WriteRecord(signals [][]float64) error {
	if len(signals) != len(ew.hdr.Signals) {
		return fmt.Errorf("expected %d signals, got %d", len(ew.hdr.Signals), len(signals))
	}
	total := 0
	for i, samples := range signals {
		if len(samples) != ew.hdr.Signals[i].SamplesPerRecord {
			return fmt.Errorf("signal %d: expected %d samples, got %d", i, ew.hdr.Signals[i].SamplesPerRecord, len(samples))
		}
		total += len(samples)
	}
	if total*2 > maxRecordBytes {
		return fmt.Errorf("data record too large: %d bytes, max is %d bytes", total*2, maxRecordBytes)
	}

	if _, err := ew.w.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	bw := bufio.NewWriter(ew.w)
	buf := make([]byte, 2)
	for i, samples := range signals {
		sig := ew.hdr.Signals[i]
		for _, sample := range samples {
			binary.LittleEndian.PutUint16(buf, uint16(physicalToDigital(sample, sig)))
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	ew.dataRecords++
	return nil
}

// Close rewrites the header with the final data record count.
func (ew *Writer) Close() error {
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func (ew *Writer) writeHeader() error {
	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	hdr := &ew.hdr
	hdr.HeaderBytes = fixedHeaderBytes + len(hdr.Signals)*signalHeaderBytes

	bw := bufio.NewWriter(ew.w)
	put := func(value string, width int) {
		fmt.Fprintf(bw, "%-*s", width, truncate(value, width))
	}

	put(hdr.Version, 8)
	put(hdr.PatientID, 80)
	put(hdr.RecordingID, 80)
	put(hdr.StartTime.Format("02.01.06"), 8)
	put(hdr.StartTime.Format("15.04.05"), 8)
	put(strconv.Itoa(hdr.HeaderBytes), 8)
	put("", 44)
	put(strconv.Itoa(hdr.DataRecords), 8)
	put(strconv.FormatFloat(hdr.DataRecordDuration.Seconds(), 'f', -1, 64), 8)
	put(strconv.Itoa(len(hdr.Signals)), 4)

	columns := []struct {
		width int
		value func(Signal) string
	}{
		{16, func(s Signal) string { return s.Label }},
		{80, func(s Signal) string { return s.TransducerType }},
		{8, func(s Signal) string { return s.PhysicalDimension }},
		{8, func(s Signal) string { return formatPhysical(s.PhysicalMin) }},
		{8, func(s Signal) string { return formatPhysical(s.PhysicalMax) }},
		{8, func(s Signal) string { return strconv.Itoa(s.DigitalMin) }},
		{8, func(s Signal) string { return strconv.Itoa(s.DigitalMax) }},
		{80, func(s Signal) string { return s.Prefiltering }},
		{8, func(s Signal) string { return strconv.Itoa(s.SamplesPerRecord) }},
		{32, func(Signal) string { return "" }},
	}
	for _, col := range columns {
		for _, sig := range hdr.Signals {
			put(col.value(sig), col.width)
		}
	}
	return bw.Flush()
}

func formatPhysical(val float64) string {
	s := strconv.FormatFloat(val, 'f', 2, 64)
	if len(s) > 8 {
		s = strconv.FormatFloat(val, 'f', 0, 64)
	}
	return s
}

func truncate(s string, width int) string {
	if len(s) > width {
		return s[:width]
	}
	return s
}
