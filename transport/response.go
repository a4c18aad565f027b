// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"errors"
	"fmt"

	"github.com/ffutop/modbus-emulator/modbus"
	"github.com/ffutop/modbus-emulator/modbus/codec"
)

// ErrResponse reports a reply whose body does not answer its request.
var ErrResponse = errors.New("transport: response does not match request")

// CheckResponse decodes resp against req and reports a shape mismatch, such
// as a register count that disagrees with the requested quantity. Exception
// replies pass unchecked. So do requests the codec cannot decode, since a
// master may forward function codes it does not know.
func CheckResponse(req, resp modbus.ProtocolDataUnit) error {
	if resp.IsException() {
		return nil
	}
	decoded, err := codec.DecodeRequest(req.Bytes())
	if err != nil {
		return nil
	}
	if _, err := codec.DecodeResponse(decoded, resp.Bytes()); err != nil {
		return fmt.Errorf("%w: %w", ErrResponse, err)
	}
	return nil
}
