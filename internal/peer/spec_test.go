package peer

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/afero"

	apperrors "github.com/TravelModellingGroup/emmebridge/internal/errors"
)

func TestSpec_Args(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want []string
	}{
		{
			name: "plain",
			spec: Spec{Script: "bridge.py", ProjectFile: "p.emp", UserInitials: "TMG"},
			want: []string{"bridge.py", "p.emp", "TMG", "0", "pipe-1"},
		},
		{
			name: "interpreter args and performance",
			spec: Spec{
				InterpreterArgs: []string{"-u", "-X", "utf8"},
				Script:          "bridge.py",
				ProjectFile:     "p.emp",
				UserInitials:    "ab",
				PerformanceMode: true,
			},
			want: []string{"-u", "-X", "utf8", "bridge.py", "p.emp", "ab", "1", "pipe-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.spec.Args("pipe-1"); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Args() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSpec_Dir(t *testing.T) {
	s := Spec{Script: filepath.Join("opt", "tmg", "bridge.py")}
	if got, want := s.Dir(), filepath.Join("opt", "tmg"); got != want {
		t.Errorf("Dir() = %q, want %q", got, want)
	}
	s.WorkingDir = "work"
	if got := s.Dir(); got != "work" {
		t.Errorf("Dir() = %q, want %q", got, "work")
	}
}

func newSpecFs(t *testing.T) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for _, f := range []string{"/usr/bin/python3", "/opt/tmg/bridge.py", "/opt/tmg/BRIDGE.PY", "/data/project.emp", "/data/notes.txt"} {
		if err := afero.WriteFile(fsys, f, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile(%s): %v", f, err)
		}
	}
	if err := fsys.MkdirAll("/work", 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	return fsys
}

func validSpec() Spec {
	return Spec{
		Executable:   "/usr/bin/python3",
		Script:       "/opt/tmg/bridge.py",
		ProjectFile:  "/data/project.emp",
		UserInitials: "TMG",
	}
}

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Spec)
		wantField string
	}{
		{"valid", func(*Spec) {}, ""},
		{"uppercase extension", func(s *Spec) { s.Script = "/opt/tmg/BRIDGE.PY" }, ""},
		{"valid working dir", func(s *Spec) { s.WorkingDir = "/work" }, ""},
		{"missing executable", func(s *Spec) { s.Executable = "" }, "peer.executable"},
		{"executable not found", func(s *Spec) { s.Executable = "/usr/bin/python9" }, "peer.executable"},
		{"executable is a dir", func(s *Spec) { s.Executable = "/work" }, "peer.executable"},
		{"bare name not on PATH", func(s *Spec) { s.Executable = "emmebridge-no-such-interpreter" }, "peer.executable"},
		{"missing script", func(s *Spec) { s.Script = "" }, "peer.script"},
		{"script wrong extension", func(s *Spec) { s.Script = "/data/notes.txt" }, "peer.script"},
		{"script not found", func(s *Spec) { s.Script = "/opt/tmg/other.py" }, "peer.script"},
		{"missing project", func(s *Spec) { s.ProjectFile = "" }, "peer.project_file"},
		{"project not found", func(s *Spec) { s.ProjectFile = "/data/missing.emp" }, "peer.project_file"},
		{"blank initials", func(s *Spec) { s.UserInitials = "  " }, "peer.user_initials"},
		{"working dir missing", func(s *Spec) { s.WorkingDir = "/nope" }, "peer.working_dir"},
		{"working dir is a file", func(s *Spec) { s.WorkingDir = "/data/notes.txt" }, "peer.working_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSpec()
			tt.mutate(&s)
			err := s.Validate(newSpecFs(t))

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var cfgErr *apperrors.ConfigurationError
			if !apperrors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want *ConfigurationError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.wantField)
			}
			if !apperrors.Is(err, apperrors.ErrInvalidConfiguration) {
				t.Error("error should match ErrInvalidConfiguration")
			}
		})
	}
}
