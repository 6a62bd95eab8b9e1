// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package edf reads and writes single-rate European Data Format recordings
// with 16-bit little-endian samples.
package edf

import (
	"errors"
	"time"
)

const (
	fixedHeaderBytes  = 256
	signalHeaderBytes = 256
	// maxRecordBytes is the data record size recommended by the EDF standard.
	maxRecordBytes = 61440
)

var (
	// ErrSignalIndex indicates a signal index outside the header's signal list.
	ErrSignalIndex = errors.New("signal index out of range")
	// ErrUnknownLength indicates a header whose data record count was never finalized.
	ErrUnknownLength = errors.New("data record count unknown")
)

// Header describes the EDF file header.
type Header struct {
	Version            string
	PatientID          string
	RecordingID        string
	StartTime          time.Time
	HeaderBytes        int
	DataRecordDuration time.Duration
	// DataRecords is -1 while a writer has not been closed.
	DataRecords int
	Signals     []Signal
}

// Signal describes one channel of the recording.
type Signal struct {
	Label             string
	TransducerType    string
	PhysicalDimension string
	PhysicalMin       float64
	PhysicalMax       float64
	DigitalMin        int
	DigitalMax        int
	Prefiltering      string
	SamplesPerRecord  int
}

// SampleRate returns the signal's samples per second.
func (h *Header) SampleRate(signalIndex int) (float64, error) {
	if signalIndex < 0 || signalIndex >= len(h.Signals) {
		return 0, ErrSignalIndex
	}
	seconds := h.DataRecordDuration.Seconds()
	if seconds <= 0 {
		return 0, errors.New("data record duration must be positive")
	}
	return float64(h.Signals[signalIndex].SamplesPerRecord) / seconds, nil
}

func (h *Header) recordSamples() int {
	total := 0
	for _, sig := range h.Signals {
		total += sig.SamplesPerRecord
	}
	return total
}

func digitalToPhysical(digital int16, sig Signal) float64 {
	if sig.DigitalMax == sig.DigitalMin {
		return 0
	}
	scale := (sig.PhysicalMax - sig.PhysicalMin) / float64(sig.DigitalMax-sig.DigitalMin)
	return sig.PhysicalMin + (float64(digital)-float64(sig.DigitalMin))*scale
}

func physicalToDigital(physical float64, sig Signal) int16 {
	if sig.PhysicalMax == sig.PhysicalMin {
		return 0
	}
	digital := (physical-sig.PhysicalMin)*float64(sig.DigitalMax-sig.DigitalMin)/(sig.PhysicalMax-sig.PhysicalMin) + float64(sig.DigitalMin)
	switch {
	case digital > float64(sig.DigitalMax):
		digital = float64(sig.DigitalMax)
	case digital < float64(sig.DigitalMin):
		digital = float64(sig.DigitalMin)
	}
	return int16(digital)
}
