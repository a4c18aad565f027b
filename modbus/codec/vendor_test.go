// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package codec

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeComment(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		want    []byte
		wantErr error
	}{
		{"Latin", "pump 1", []byte{25, 30, 23, 25, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, nil},
		{"Cyrillic", "АЯ", []byte{37, 68, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, nil},
		{"Full", "0123456789ABCDEF", []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, nil},
		{"TooLong", "0123456789ABCDEFG", nil, ErrRange},
		{"LatinO", "OK", nil, ErrFormat},
		{"LatinOInWord", "MOTOR", nil, ErrFormat},
		{"CyrillicOInWord", "MОTОR", []byte{23, 51, 29, 51, 27, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, nil},
		{"Punctuation", "A-B", nil, ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeComment(tt.comment)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("EncodeComment() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("EncodeComment() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeComment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeviceComment(t *testing.T) {
	pdu, err := BuildWriteDeviceCommentRequest("Насос 2")
	if err != nil {
		t.Fatal(err)
	}
	if len(pdu) != 18 || pdu[0] != 0x42 || pdu[1] != 16 {
		t.Fatalf("BuildWriteDeviceCommentRequest() = % X", pdu)
	}
	req, err := ParseWriteDeviceCommentRequest(pdu)
	if err != nil {
		t.Fatal(err)
	}
	if req.Comment != "НАСОС 2" {
		t.Errorf("comment = %q, want %q", req.Comment, "НАСОС 2")
	}
	if err := ParseWriteDeviceCommentResponse(BuildWriteDeviceCommentResponse()); err != nil {
		t.Errorf("ParseWriteDeviceCommentResponse() error = %v", err)
	}

	if got := BuildReadDeviceCommentRequest(); !bytes.Equal(got, []byte{0x41}) {
		t.Errorf("BuildReadDeviceCommentRequest() = % X", got)
	}
	resp, err := BuildReadDeviceCommentResponse("LINE 4")
	if err != nil {
		t.Fatal(err)
	}
	comment, err := ParseReadDeviceCommentResponse(resp)
	if err != nil || comment != "LINE 4" {
		t.Errorf("ParseReadDeviceCommentResponse() = %q, %v", comment, err)
	}

	resp[5] = 36
	if _, err := ParseReadDeviceCommentResponse(resp); !errors.Is(err, ErrFormat) {
		t.Errorf("unassigned code error = %v, want ErrFormat", err)
	}
}

func TestFileFunctions(t *testing.T) {
	pdu, err := BuildOpenFileRequest("LOG.TXT")
	if err != nil {
		t.Fatal(err)
	}
	want := append([]byte{0x43, 0x07}, "LOG.TXT"...)
	if !bytes.Equal(pdu, want) {
		t.Errorf("BuildOpenFileRequest() = % X, want % X", pdu, want)
	}
	req, err := ParseOpenFileRequest(pdu)
	if err != nil || req.Name != "LOG.TXT" {
		t.Errorf("ParseOpenFileRequest() = %+v, %v", req, err)
	}

	cyr, err := BuildReadFileLengthRequest("Я")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(cyr, []byte{0x44, 0x01, 0xDF}) {
		t.Errorf("BuildReadFileLengthRequest() = % X", cyr)
	}
	if r, err := ParseReadFileLengthRequest(cyr); err != nil || r.Name != "Я" {
		t.Errorf("ParseReadFileLengthRequest() = %+v, %v", r, err)
	}

	if _, err := BuildOpenFileRequest(""); !errors.Is(err, ErrRange) {
		t.Errorf("empty name error = %v, want ErrRange", err)
	}
	if _, err := ParseOpenFileRequest([]byte{0x43, 0x05, 'A'}); !errors.Is(err, ErrFormat) {
		t.Errorf("truncated name error = %v, want ErrFormat", err)
	}

	tests := []struct {
		name   string
		length int64
		want   []byte
	}{
		{"Size", 1024, []byte{0x43, 0x00, 0x00, 0x04, 0x00}},
		{"NotFound", FileNotFound, []byte{0x43, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"Zero", 0, []byte{0x43, 0x00, 0x00, 0x00, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdu, err := BuildOpenFileResponse(tt.length)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(pdu, tt.want) {
				t.Errorf("BuildOpenFileResponse() = % X, want % X", pdu, tt.want)
			}
			got, err := ParseOpenFileResponse(pdu)
			if err != nil || got.Length != tt.length {
				t.Errorf("ParseOpenFileResponse() = %+v, %v", got, err)
			}
		})
	}

	if _, err := BuildReadFileLengthResponse(-2); !errors.Is(err, ErrRange) {
		t.Errorf("negative length error = %v, want ErrRange", err)
	}
	resp, _ := BuildReadFileLengthResponse(7)
	if got, err := ParseReadFileLengthResponse(resp); err != nil || got.Length != 7 {
		t.Errorf("ParseReadFileLengthResponse() = %+v, %v", got, err)
	}

	if err := ParseCloseFileResponse(BuildCloseFileResponse()); err != nil {
		t.Errorf("ParseCloseFileResponse() error = %v", err)
	}
	if err := ParseRestartControllerResponse(BuildRestartControllerResponse()); err != nil {
		t.Errorf("ParseRestartControllerResponse() error = %v", err)
	}
	if err := ParseCloseFileResponse([]byte{0x45, 0x00}); !errors.Is(err, ErrFormat) {
		t.Errorf("long ack error = %v, want ErrFormat", err)
	}
}

func TestControllerTime(t *testing.T) {
	c := Clock{Seconds: 30, Minutes: 15, Hours: 12, Day: 19, Month: 10, Year: 2026}
	want := []byte{0x47, 0x00, 0x07, 0x1E, 0x0F, 0x0C, 0x13, 0x0A, 0xEA, 0x07}

	pdu, err := BuildGetControllerTimeResponse(c)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pdu, want) {
		t.Errorf("BuildGetControllerTimeResponse() = % X, want % X", pdu, want)
	}
	got, err := ParseGetControllerTimeResponse(pdu)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(c, got); diff != "" {
		t.Errorf("clock mismatch (-want +got):\n%s", diff)
	}

	set, err := BuildSetControllerTimeRequest(c)
	if err != nil {
		t.Fatal(err)
	}
	req, err := ParseSetControllerTimeRequest(set)
	if err != nil || req.Clock != c {
		t.Errorf("ParseSetControllerTimeRequest() = %+v, %v", req, err)
	}
	if err := ParseSetControllerTimeResponse(BuildSetControllerTimeResponse()); err != nil {
		t.Errorf("ParseSetControllerTimeResponse() error = %v", err)
	}

	bad := c
	bad.Month = 13
	if _, err := BuildSetControllerTimeRequest(bad); !errors.Is(err, ErrRange) {
		t.Errorf("month 13 error = %v, want ErrRange", err)
	}
	set[7] = 0
	if _, err := ParseSetControllerTimeRequest(set); !errors.Is(err, ErrRange) {
		t.Errorf("month 0 error = %v, want ErrRange", err)
	}
	if _, err := ParseGetControllerTimeResponse(want[:9]); !errors.Is(err, ErrFormat) {
		t.Errorf("truncated time error = %v, want ErrFormat", err)
	}

	ts := time.Date(2026, time.October, 19, 12, 15, 30, 0, time.UTC)
	if got := ClockFromTime(ts); got != c {
		t.Errorf("ClockFromTime() = %+v, want %+v", got, c)
	}
	if !c.Time(time.UTC).Equal(ts) {
		t.Errorf("Time() = %v, want %v", c.Time(time.UTC), ts)
	}
}
