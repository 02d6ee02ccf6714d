package protocol

import (
	"fmt"
	"strings"
)

// Code is a signal code as it appears on the wire.
type Code int32

// Signal codes shared by both directions of the protocol.
const (
	CodeStart                       Code = 0
	CodeTermination                 Code = 1
	CodeStartModule                 Code = 2 // deprecated text-parameter request; never sent
	CodeRunComplete                 Code = 3
	CodeParameterError              Code = 4
	CodeRuntimeError                Code = 5
	CodeCleanLogbook                Code = 6
	CodeProgressReport              Code = 7
	CodeRunCompleteWithValue        Code = 8
	CodeCheckToolExists             Code = 9
	CodeToolNotFound                Code = 10
	CodePrintMessage                Code = 11
	CodeDisableLogbook              Code = 12
	CodeEnableLogbook               Code = 13
	CodeStartModuleBinaryParameters Code = 14
	CodeIncompatibleTool            Code = 15
)

var codeNames = map[Code]string{
	CodeStart:                       "Start",
	CodeTermination:                 "Termination",
	CodeStartModule:                 "StartModule",
	CodeRunComplete:                 "RunComplete",
	CodeParameterError:              "ParameterError",
	CodeRuntimeError:                "RuntimeError",
	CodeCleanLogbook:                "CleanLogbook",
	CodeProgressReport:              "ProgressReport",
	CodeRunCompleteWithValue:        "RunCompleteWithValue",
	CodeCheckToolExists:             "CheckToolExists",
	CodeToolNotFound:                "ToolNotFound",
	CodePrintMessage:                "PrintMessage",
	CodeDisableLogbook:              "DisableLogbook",
	CodeEnableLogbook:               "EnableLogbook",
	CodeStartModuleBinaryParameters: "StartModuleBinaryParameters",
	CodeIncompatibleTool:            "IncompatibleTool",
}

// String returns the symbolic name of the code, or Code(n) when unknown.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int32(c))
}

// LogbookLevel controls how verbosely the peer records an operation.
// It travels as its symbolic name, never as an ordinal.
type LogbookLevel int

const (
	LogbookNone LogbookLevel = iota
	LogbookStandard
	LogbookDebug
)

// String returns the wire name of the level.
func (l LogbookLevel) String() string {
	switch l {
	case LogbookNone:
		return "NONE"
	case LogbookStandard:
		return "STANDARD"
	case LogbookDebug:
		return "DEBUG"
	default:
		return fmt.Sprintf("LogbookLevel(%d)", int(l))
	}
}

// Valid reports whether l is one of the defined levels.
func (l LogbookLevel) Valid() bool {
	return l >= LogbookNone && l <= LogbookDebug
}

// ParseLogbookLevel parses a level name case-insensitively.
func ParseLogbookLevel(s string) (LogbookLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NONE":
		return LogbookNone, nil
	case "STANDARD":
		return LogbookStandard, nil
	case "DEBUG":
		return LogbookDebug, nil
	default:
		return LogbookNone, fmt.Errorf("protocol: unknown logbook level %q", s)
	}
}

// LogbookLevelNames returns the accepted level names in ascending verbosity.
func LogbookLevelNames() []string {
	return []string{"none", "standard", "debug"}
}
