// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"time"

	"github.com/ffutop/modbus-emulator/modbus/codec"
)

const timeLayout = "2006-01-02 15:04:05"

var readCodes = map[string]int{
	"basic":    codec.ReadDeviceIDBasic,
	"regular":  codec.ReadDeviceIDRegular,
	"extended": codec.ReadDeviceIDExtended,
	"specific": codec.ReadDeviceIDSpecific,
}

var objectNames = map[byte]string{
	codec.ObjectVendorName:          "VendorName",
	codec.ObjectProductCode:         "ProductCode",
	codec.ObjectMajorMinorRevision:  "MajorMinorRevision",
	codec.ObjectVendorURL:           "VendorUrl",
	codec.ObjectProductName:         "ProductName",
	codec.ObjectModelName:           "ModelName",
	codec.ObjectUserApplicationName: "UserApplicationName",
}

type IdentCommand struct {
	Level  string `short:"l" long:"level" default:"basic" choice:"basic" choice:"regular" choice:"extended" choice:"specific" description:"Read device id code"`
	Object int    `short:"o" long:"object" default:"0" description:"First object id, or the object for --level=specific"`
}

// Execute follows the more-follows chain until the device reports the
// last page.
func (c *IdentCommand) Execute(args []string) error {
	readCode := readCodes[c.Level]
	objectID := c.Object
	for page := 0; page < 0x100; page++ {
		pdu, err := codec.BuildReadDeviceIdentificationRequest(readCode, objectID)
		if err != nil {
			return err
		}
		resp, err := query(pdu)
		if err != nil {
			return err
		}
		d, err := codec.ParseReadDeviceIdentificationResponse(resp)
		if err != nil {
			return err
		}
		if page == 0 {
			fmt.Fprintf(out, "conformity level: 0x%02X\n", d.ConformityLevel)
		}
		for _, obj := range d.Objects {
			name, ok := objectNames[obj.ID]
			if !ok {
				name = "Private"
			}
			fmt.Fprintf(out, "0x%02X %s: %s\n", obj.ID, name, obj.Value)
		}
		if d.MoreFollows != 0xFF || readCode == codec.ReadDeviceIDSpecific {
			return nil
		}
		objectID = int(d.NextObjectID)
	}
	return fmt.Errorf("device identification did not terminate")
}

type TimeCommand struct {
	Set string `long:"set" description:"Set the clock to \"YYYY-MM-DD hh:mm:ss\""`
	Now bool   `long:"now" description:"Set the clock to the local time"`
}

func (c *TimeCommand) Execute(args []string) error {
	if c.Set == "" && !c.Now {
		resp, err := query(codec.BuildGetControllerTimeRequest())
		if err != nil {
			return err
		}
		clock, err := codec.ParseGetControllerTimeResponse(resp)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, clock.Time(time.Local).Format(timeLayout))
		return nil
	}

	t := time.Now()
	if c.Set != "" {
		var err error
		if t, err = time.ParseInLocation(timeLayout, c.Set, time.Local); err != nil {
			return err
		}
	}
	pdu, err := codec.BuildSetControllerTimeRequest(codec.ClockFromTime(t))
	if err != nil {
		return err
	}
	resp, err := request(pdu)
	if err != nil || resp == nil {
		return err
	}
	if err := codec.ParseSetControllerTimeResponse(resp); err != nil {
		return err
	}
	fmt.Fprintf(out, "clock set to %s\n", t.Format(timeLayout))
	return nil
}

type CommentCommand struct {
	Set string `long:"set" description:"Write the comment"`
}

func (c *CommentCommand) Execute(args []string) error {
	if c.Set == "" {
		resp, err := query(codec.BuildReadDeviceCommentRequest())
		if err != nil {
			return err
		}
		comment, err := codec.ParseReadDeviceCommentResponse(resp)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, comment)
		return nil
	}

	pdu, err := codec.BuildWriteDeviceCommentRequest(c.Set)
	if err != nil {
		return err
	}
	resp, err := request(pdu)
	if err != nil || resp == nil {
		return err
	}
	return codec.ParseWriteDeviceCommentResponse(resp)
}

type FileCommands struct {
	Open   FileOpenCommand   `command:"open" description:"Open a file and print its length"`
	Length FileLengthCommand `command:"length" description:"Print the length of a file"`
	Close  FileCloseCommand  `command:"close" description:"Close the open file"`
}

type fileArgs struct {
	Name string `positional-arg-name:"name" required:"yes"`
}

type FileOpenCommand struct {
	Args fileArgs `positional-args:"yes" required:"yes"`
}

func (c *FileOpenCommand) Execute(args []string) error {
	pdu, err := codec.BuildOpenFileRequest(c.Args.Name)
	if err != nil {
		return err
	}
	resp, err := query(pdu)
	if err != nil {
		return err
	}
	f, err := codec.ParseOpenFileResponse(resp)
	if err != nil {
		return err
	}
	printFileLength(c.Args.Name, f.Length)
	return nil
}

type FileLengthCommand struct {
	Args fileArgs `positional-args:"yes" required:"yes"`
}

func (c *FileLengthCommand) Execute(args []string) error {
	pdu, err := codec.BuildReadFileLengthRequest(c.Args.Name)
	if err != nil {
		return err
	}
	resp, err := query(pdu)
	if err != nil {
		return err
	}
	f, err := codec.ParseReadFileLengthResponse(resp)
	if err != nil {
		return err
	}
	printFileLength(c.Args.Name, f.Length)
	return nil
}

func printFileLength(name string, length int64) {
	if length == codec.FileNotFound {
		fmt.Fprintf(out, "%s: not found\n", name)
		return
	}
	fmt.Fprintf(out, "%s: %d bytes\n", name, length)
}

type FileCloseCommand struct{}

func (c *FileCloseCommand) Execute(args []string) error {
	resp, err := request(codec.BuildCloseFileRequest())
	if err != nil || resp == nil {
		return err
	}
	return codec.ParseCloseFileResponse(resp)
}

type RestartCommand struct{}

func (c *RestartCommand) Execute(args []string) error {
	resp, err := request(codec.BuildRestartControllerRequest())
	if err != nil || resp == nil {
		return err
	}
	return codec.ParseRestartControllerResponse(resp)
}
