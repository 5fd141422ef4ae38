package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	cmdInfer   = "infer"
	cmdStatus  = "status"
	cmdHistory = "history"
	cmdHelp    = "help"
	cmdQuit    = "quit"
)

const helpText = `  <Enter>          run inference with the default scale
  infer [scale]    run inference, optionally with a scale factor
  status           show trigger counters
  history          show recent notifications
  help             show this help
  quit             wait for in-flight requests and exit
`

type command struct {
	Name  string
	Scale float64 // zero means the configured default
}

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{Name: cmdInfer}, nil
	}

	name := strings.ToLower(fields[0])
	switch name {
	case cmdInfer, "i":
		if len(fields) > 2 {
			return command{}, fmt.Errorf("usage: infer [scale]")
		}
		if len(fields) == 1 {
			return command{Name: cmdInfer}, nil
		}
		scale, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || scale <= 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
			return command{}, fmt.Errorf("invalid scale %q: want a positive number", fields[1])
		}
		return command{Name: cmdInfer, Scale: scale}, nil
	case cmdStatus, cmdHistory, cmdHelp:
		return command{Name: name}, nil
	case cmdQuit, "exit", "q":
		return command{Name: cmdQuit}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q, type \"help\"", fields[0])
	}
}
