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
	"strings"
	"time"
)

// Reader reads EDF files.
type Reader struct {
	r   io.ReadSeeker
	hdr *Header
}

// Open parses the header of an EDF file.
func Open(r io.ReadSeeker) (*Reader, error) {
	br := bufio.NewReader(r)

	b := make([]byte, fixedHeaderBytes)
	if _, err := io.ReadFull(br, b); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	hdr := &Header{
		Version:     field(b, 0, 8),
		PatientID:   field(b, 8, 88),
		RecordingID: field(b, 88, 168),
	}

	startDate, err := time.Parse("02.01.06", field(b, 168, 176))
	if err != nil {
		return nil, fmt.Errorf("parse start date: %w", err)
	}
	startTime, err := time.Parse("15.04.05", field(b, 176, 184))
	if err != nil {
		return nil, fmt.Errorf("parse start time: %w", err)
	}
	hdr.StartTime = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)

	if hdr.HeaderBytes, err = strconv.Atoi(field(b, 184, 192)); err != nil {
		return nil, fmt.Errorf("parse header bytes: %w", err)
	}
	if hdr.DataRecords, err = strconv.Atoi(field(b, 236, 244)); err != nil {
		return nil, fmt.Errorf("parse data record count: %w", err)
	}
	durationSeconds, err := strconv.ParseFloat(field(b, 244, 252), 64)
	if err != nil {
		return nil, fmt.Errorf("parse data record duration: %w", err)
	}
	hdr.DataRecordDuration = time.Duration(durationSeconds * float64(time.Second))

	signalCount, err := strconv.Atoi(field(b, 252, 256))
	if err != nil {
		return nil, fmt.Errorf("parse signal count: %w", err)
	}
	if signalCount < 0 {
		return nil, fmt.Errorf("parse signal count: negative value %d", signalCount)
	}

	signalHeader := make([]byte, signalCount*signalHeaderBytes)
	if _, err := io.ReadFull(br, signalHeader); err != nil {
		return nil, fmt.Errorf("read signal headers: %w", err)
	}
	hdr.Signals = parseSignals(signalHeader, signalCount)

	return &Reader{r: r, hdr: hdr}, nil
}

// parseSignals decodes the signal header block, which stores each field for
// every signal before moving on to the next field.
func parseSignals(b []byte, count int) []Signal {
	signals := make([]Signal, count)
	offset := 0
	next := func(width int) []string {
		values := make([]string, count)
		for i := range count {
			values[i] = field(b, offset, offset+width)
			offset += width
		}
		return values
	}

	labels := next(16)
	transducers := next(80)
	dimensions := next(8)
	physMin := next(8)
	physMax := next(8)
	digMin := next(8)
	digMax := next(8)
	prefilter := next(80)
	samples := next(8)

	for i := range signals {
		signals[i] = Signal{
			Label:             labels[i],
			TransducerType:    transducers[i],
			PhysicalDimension: dimensions[i],
			PhysicalMin:       parseFloat(physMin[i]),
			PhysicalMax:       parseFloat(physMax[i]),
			DigitalMin:        parseInt(digMin[i]),
			DigitalMax:        parseInt(digMax[i]),
			Prefiltering:      prefilter[i],
			SamplesPerRecord:  parseInt(samples[i]),
		}
	}
	return signals
}

// Header returns the parsed file header.
func (er *Reader) Header() *Header {
	return er.hdr
}

// ReadSignal returns every physical sample of one signal, reading one data
// record at a time.
func (er *Reader) ReadSignal(signalIndex int) ([]float64, error) {
	hdr := er.hdr
	if signalIndex < 0 || signalIndex >= len(hdr.Signals) {
		return nil, ErrSignalIndex
	}
	if hdr.DataRecords < 0 {
		return nil, ErrUnknownLength
	}

	signal := hdr.Signals[signalIndex]
	signalOffset := 0
	for i := range signalIndex {
		signalOffset += hdr.Signals[i].SamplesPerRecord * 2
	}
	recordSize := hdr.recordSamples() * 2

	if _, err := er.r.Seek(int64(hdr.HeaderBytes), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek data records: %w", err)
	}
	br := bufio.NewReaderSize(er.r, recordSize)
	record := make([]byte, recordSize)
	out := make([]float64, 0, hdr.DataRecords*signal.SamplesPerRecord)

	for rec := range hdr.DataRecords {
		if _, err := io.ReadFull(br, record); err != nil {
			return out, fmt.Errorf("read data record %d: %w", rec, err)
		}
		chunk := record[signalOffset : signalOffset+signal.SamplesPerRecord*2]
		for i := 0; i < len(chunk); i += 2 {
			digital := int16(binary.LittleEndian.Uint16(chunk[i:]))
			out = append(out, digitalToPhysical(digital, signal))
		}
	}
	return out, nil
}

func field(b []byte, start, end int) string {
	return strings.TrimSpace(string(b[start:end]))
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}
