// Package batch runs a list of modeller operations described in a YAML file
// through one bridge session.
//
// A batch file looks like:
//
//	logbook: standard
//	continue_on_error: false
//	operations:
//	  - operation: tmg2.Assignment.RoadAssignment
//	    payload:
//	      scenario: 1
//	      iterations: 100
//	  - operation: tmg2.Export.ExportMatrix
//	    logbook: debug
//	    payload_file: export.json
//
// A string payload is sent verbatim. Any other YAML value is sent as JSON.
// payload_file paths are relative to the batch file.
package batch

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	apperrors "github.com/TravelModellingGroup/emmebridge/internal/errors"
	"github.com/TravelModellingGroup/emmebridge/internal/protocol"
)

// File is a parsed batch file.
type File struct {
	// Path is where the file was loaded from.
	Path string `yaml:"-"`
	// Logbook is the default logbook level for steps that do not set one.
	Logbook string `yaml:"logbook"`
	// ContinueOnError keeps running after a tool reports an error.
	// Connectivity errors always stop the batch.
	ContinueOnError bool   `yaml:"continue_on_error"`
	Steps           []Step `yaml:"operations"`
}

// Step is one operation in a batch.
type Step struct {
	Operation   string `yaml:"operation"`
	Logbook     string `yaml:"logbook"`
	Payload     any    `yaml:"payload"`
	PayloadFile string `yaml:"payload_file"`

	level protocol.LogbookLevel
	data  []byte
}

// Level returns the step's resolved logbook level.
func (s Step) Level() protocol.LogbookLevel { return s.level }

// Data returns the step's resolved payload bytes.
func (s Step) Data() []byte { return s.data }

// Load reads and validates the batch file at path. Payload files are read
// from fsys as well.
func Load(fsys afero.Fs, path string) (*File, error) {
	raw, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, apperrors.NewConfigurationError("read batch file", err).WithPath(path)
	}
	return Parse(fsys, path, raw)
}

// Parse decodes a batch file. path is used to resolve payload_file entries.
func Parse(fsys afero.Fs, path string, raw []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, apperrors.NewConfigurationError("parse batch file", err).WithPath(path)
	}
	f.Path = path

	defaultLevel := protocol.LogbookStandard
	if f.Logbook != "" {
		lvl, err := protocol.ParseLogbookLevel(f.Logbook)
		if err != nil {
			return nil, apperrors.NewConfigurationError("invalid default logbook level", err).
				WithField("logbook").WithPath(path)
		}
		defaultLevel = lvl
	}

	if len(f.Steps) == 0 {
		return nil, apperrors.NewConfigurationError("batch has no operations", nil).
			WithField("operations").WithPath(path)
	}

	dir := filepath.Dir(path)
	for i := range f.Steps {
		if err := f.Steps[i].resolve(fsys, dir, defaultLevel); err != nil {
			return nil, apperrors.NewConfigurationError("invalid operation", err).
				WithField(fmt.Sprintf("operations[%d]", i)).WithPath(path)
		}
	}
	return &f, nil
}

func (s *Step) resolve(fsys afero.Fs, dir string, defaultLevel protocol.LogbookLevel) error {
	s.Operation = strings.TrimSpace(s.Operation)
	if s.Operation == "" {
		return fmt.Errorf("operation is required")
	}

	s.level = defaultLevel
	if s.Logbook != "" {
		lvl, err := protocol.ParseLogbookLevel(s.Logbook)
		if err != nil {
			return fmt.Errorf("invalid logbook level: %w", err)
		}
		s.level = lvl
	}

	if s.PayloadFile != "" {
		if s.Payload != nil {
			return fmt.Errorf("payload and payload_file are mutually exclusive")
		}
		p := s.PayloadFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		data, err := afero.ReadFile(fsys, p)
		if err != nil {
			return apperrors.Wrap(err, "read payload file")
		}
		s.data = data
		return nil
	}

	data, err := EncodePayload(s.Payload)
	if err != nil {
		return err
	}
	s.data = data
	return nil
}

// EncodePayload converts a decoded YAML value into the bytes sent to the
// modeller. Strings pass through unchanged, nil becomes an empty payload and
// everything else is marshaled as JSON.
func EncodePayload(v any) ([]byte, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	}
	data, err := json.Marshal(jsonValue(v))
	if err != nil {
		return nil, fmt.Errorf("encode payload as JSON: %w", err)
	}
	return data, nil
}

// jsonValue rewrites mappings with non-string keys, which encoding/json
// cannot marshal.
func jsonValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = jsonValue(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[fmt.Sprint(k)] = jsonValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = jsonValue(e)
		}
		return out
	default:
		return v
	}
}
