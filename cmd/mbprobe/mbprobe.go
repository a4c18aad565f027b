// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command mbprobe is a Modbus master for poking at emulated or real slaves.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

type CLICommand struct {
	Target  string        `short:"t" long:"target" description:"Slave to contact: tcp:host:port, rtu-over-tcp:host:port or rtu:device[:baud[:parity[:stop]]]" required:"true" env:"MBPROBE_TARGET"`
	Unit    int           `short:"u" long:"unit" default:"1" description:"Unit address (0 broadcasts writes)"`
	Timeout time.Duration `long:"timeout" default:"1s" description:"Response timeout"`
	Verbose bool          `long:"verbose" description:"Print request and response PDUs"`

	Holding       HoldingCommand       `command:"holding" alias:"holdings" description:"Read holding registers"`
	Input         InputCommand         `command:"input" alias:"inputs" description:"Read input registers"`
	Coil          CoilCommand          `command:"coils" alias:"coil" description:"Read coils"`
	Discrete      DiscreteCommand      `command:"discretes" alias:"discrete" description:"Read discrete inputs"`
	WriteRegister WriteRegisterCommand `command:"write-register" description:"Write one or more holding registers"`
	WriteCoil     WriteCoilCommand     `command:"write-coil" description:"Write one or more coils"`
	Ident         IdentCommand         `command:"ident" description:"Read device identification"`
	Time          TimeCommand          `command:"time" description:"Get or set the controller clock"`
	Comment       CommentCommand       `command:"comment" description:"Read or write the device comment"`
	File          FileCommands         `command:"file" description:"File functions"`
	Restart       RestartCommand       `command:"restart" description:"Restart the controller"`
}

var (
	cli CLICommand
	out io.Writer = os.Stdout
)

func newParser() *flags.Parser {
	cli = CLICommand{}
	return flags.NewParser(&cli, flags.HelpFlag|flags.PassDoubleDash)
}

func main() {
	parser := newParser()

	_, err := parser.Parse()

	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
