// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package codec

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ffutop/modbus-emulator/modbus"
)

// CommentLength is the fixed number of characters of a device comment.
const CommentLength = 16

// commentTable maps a code to its character. Code 36 is unassigned and the
// Latin block (11-35) has no 'O'.
var commentTable = []rune(" 0123456789ABCDEFGHIJKLMNPQRSTUVWXYZ\x00АБВГДЕЖЗИЙКЛМНОПРСТУФХЦЧШЩЪЫЬЭЮЯ")

const commentGap = 36

var commentCodes = func() map[rune]byte {
	m := make(map[rune]byte, len(commentTable))
	for code, r := range commentTable {
		if code == commentGap {
			continue
		}
		m[r] = byte(code)
	}
	return m
}()

// EncodeComment converts comment into its 16 code bytes, padded with spaces.
// Lower case letters are folded to upper case.
//
// The character set has no Latin 'O'. A Latin 'O' or 'o' is rejected with
// ErrFormat; write the Cyrillic 'О' (U+041E) instead, as in "MОTОR".
func EncodeComment(comment string) ([]byte, error) {
	if n := utf8.RuneCountInString(comment); n > CommentLength {
		return nil, rangeErrorf("comment has %d characters, at most %d allowed", n, CommentLength)
	}
	codes := make([]byte, CommentLength)
	i := 0
	for _, r := range comment {
		code, ok := commentCodes[unicode.ToUpper(r)]
		if !ok {
			if r == 'O' || r == 'o' {
				return nil, formatErrorf("comment character %q is not supported, use Cyrillic %q", r, 'О')
			}
			return nil, formatErrorf("comment character %q is not supported", r)
		}
		codes[i] = code
		i++
	}
	return codes, nil
}

// DecodeComment converts 16 code bytes into text with trailing spaces removed.
func DecodeComment(codes []byte) (string, error) {
	if len(codes) != CommentLength {
		return "", formatErrorf("comment has %d codes, expected %d", len(codes), CommentLength)
	}
	var sb strings.Builder
	for _, code := range codes {
		if int(code) >= len(commentTable) || code == commentGap {
			return "", formatErrorf("comment code %d is not assigned", code)
		}
		sb.WriteRune(commentTable[code])
	}
	return strings.TrimRight(sb.String(), " "), nil
}

// DeviceComment is the Write Device Comment request and the Read Device
// Comment response: function code, byte count 16, 16 character codes.
type DeviceComment struct {
	message
	Function byte
	Comment  string
}

func (c *DeviceComment) FunctionCode() byte { return c.Function }

func (c *DeviceComment) Encode() ([]byte, error) {
	codes, err := EncodeComment(c.Comment)
	if err != nil {
		return nil, err
	}
	pdu := make([]byte, 2+CommentLength)
	pdu[0] = c.Function
	pdu[1] = CommentLength
	copy(pdu[2:], codes)
	return pdu, nil
}

func parseDeviceComment(functionCode byte, pdu []byte) (*DeviceComment, error) {
	if err := expect(pdu, functionCode, 2+CommentLength); err != nil {
		return nil, err
	}
	if pdu[1] != CommentLength {
		return nil, formatErrorf("device comment: byte count %d, expected %d", pdu[1], CommentLength)
	}
	comment, err := DecodeComment(pdu[2:])
	if err != nil {
		return nil, err
	}
	return &DeviceComment{Function: functionCode, Comment: comment}, nil
}

// BuildReadDeviceCommentRequest encodes a Read Device Comment request.
func BuildReadDeviceCommentRequest() []byte {
	return []byte{modbus.FuncCodeReadDeviceComment}
}

// BuildReadDeviceCommentResponse encodes a Read Device Comment response.
func BuildReadDeviceCommentResponse(comment string) ([]byte, error) {
	return (&DeviceComment{Function: modbus.FuncCodeReadDeviceComment, Comment: comment}).Encode()
}

// ParseReadDeviceCommentResponse decodes a Read Device Comment response.
func ParseReadDeviceCommentResponse(pdu []byte) (string, error) {
	c, err := parseDeviceComment(modbus.FuncCodeReadDeviceComment, pdu)
	if err != nil {
		return "", err
	}
	return c.Comment, nil
}

// BuildWriteDeviceCommentRequest encodes a Write Device Comment request.
func BuildWriteDeviceCommentRequest(comment string) ([]byte, error) {
	return (&DeviceComment{Function: modbus.FuncCodeWriteDeviceComment, Comment: comment}).Encode()
}

// ParseWriteDeviceCommentRequest decodes a Write Device Comment request.
func ParseWriteDeviceCommentRequest(pdu []byte) (*DeviceComment, error) {
	return parseDeviceComment(modbus.FuncCodeWriteDeviceComment, pdu)
}

// BuildWriteDeviceCommentResponse encodes the acknowledgement of Write Device Comment.
func BuildWriteDeviceCommentResponse() []byte {
	return []byte{modbus.FuncCodeWriteDeviceComment}
}

// ParseWriteDeviceCommentResponse checks the acknowledgement of Write Device Comment.
func ParseWriteDeviceCommentResponse(pdu []byte) error {
	return expect(pdu, modbus.FuncCodeWriteDeviceComment, 1)
}
