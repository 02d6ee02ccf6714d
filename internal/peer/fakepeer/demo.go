package fakepeer

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/TravelModellingGroup/emmebridge/internal/protocol"
)

// Namespaces of the demonstration tools.
const (
	ToolEcho          = "tmg.demo.echo"
	ToolPrint         = "tmg.demo.print"
	ToolProgress      = "tmg.demo.progress"
	ToolSleep         = "tmg.demo.sleep"
	ToolFailParameter = "tmg.demo.fail_parameter"
	ToolFailRuntime   = "tmg.demo.fail_runtime"
	ToolIncompatible  = "tmg.demo.incompatible"
	ToolCrash         = "tmg.demo.crash"
	ToolShutdown      = "tmg.demo.shutdown"
)

// ProgressPayload is the JSON payload accepted by the progress tool.
type ProgressPayload struct {
	Steps   int `json:"steps"`
	DelayMS int `json:"delay_ms"`
}

// DemoTools returns a tool set that exercises every signal the bridge
// understands.
func DemoTools() map[string]Tool {
	return map[string]Tool{
		ToolEcho:          echo,
		ToolPrint:         printLines,
		ToolProgress:      progress,
		ToolSleep:         sleep,
		ToolFailParameter: failParameter,
		ToolFailRuntime:   failRuntime,
		ToolIncompatible:  incompatible,
		ToolCrash:         func(*Writer, protocol.Request) error { return ErrDisconnect },
		ToolShutdown:      func(w *Writer, _ protocol.Request) error { w.Terminate(); return nil },
	}
}

// echo reports halfway progress and answers with the payload plus "-ack".
func echo(w *Writer, req protocol.Request) error {
	w.Progress(0.5)
	w.CompleteWithValue(string(req.Payload) + "-ack")
	return nil
}

func printLines(w *Writer, req protocol.Request) error {
	for _, line := range strings.Split(string(req.Payload), "\n") {
		if line != "" {
			w.Print(line)
		}
	}
	return nil
}

func progress(w *Writer, req protocol.Request) error {
	p := ProgressPayload{Steps: 4}
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			w.ParameterError("progress payload: " + err.Error())
			return nil
		}
	}
	if p.Steps <= 0 {
		w.ParameterError("steps must be positive")
		return nil
	}
	for i := 1; i <= p.Steps; i++ {
		time.Sleep(time.Duration(p.DelayMS) * time.Millisecond)
		w.Progress(float32(i) / float32(p.Steps))
	}
	return nil
}

// sleep holds the peer busy for the duration in the payload, e.g. "200ms".
func sleep(w *Writer, req protocol.Request) error {
	d, err := time.ParseDuration(string(req.Payload))
	if err != nil {
		w.ParameterError("sleep payload: " + err.Error())
		return nil
	}
	time.Sleep(d)
	w.CompleteWithValue(d.String())
	return nil
}

func failParameter(w *Writer, req protocol.Request) error {
	msg := string(req.Payload)
	if msg == "" {
		msg = "invalid parameters"
	}
	w.ParameterError(msg)
	return nil
}

func failRuntime(_ *Writer, req protocol.Request) error {
	msg := string(req.Payload)
	if msg == "" {
		msg = "tool raised an exception"
	}
	return errors.New(msg)
}

func incompatible(w *Writer, _ protocol.Request) error {
	w.IncompatibleTool("Tool is not compatible with the current modeller version")
	return nil
}
