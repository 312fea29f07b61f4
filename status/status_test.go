package status

import (
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/vinayprograms/todokit/errors"
)

func TestStatus_CodesAndMessages(t *testing.T) {
	tests := []struct {
		status  Status
		code    int
		message string
	}{
		{Success, 200, "Success"},
		{Created, 201, "Created"},
		{Updated, 204, "Updated"},
		{NullArgument, 400, "Null argument"},
		{NotFound, 404, "Not found"},
		{Duplicate, 409, "Duplicate"},
		{InternalError, 500, "Internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := tt.status.Code(); got != tt.code {
				t.Errorf("Code() = %d, want %d", got, tt.code)
			}
			if got := tt.status.Message(); got != tt.message {
				t.Errorf("Message() = %q, want %q", got, tt.message)
			}
			back, ok := FromCode(tt.code)
			if !ok || back != tt.status {
				t.Errorf("FromCode(%d) = %v, %v", tt.code, back, ok)
			}
		})
	}
}

func TestStatus_UnknownFallsBackToInternal(t *testing.T) {
	s := Status(99)
	if s.Code() != 500 || s.Message() != "Internal error" {
		t.Errorf("unknown status rendered as %d %q", s.Code(), s.Message())
	}
	if _, ok := FromCode(418); ok {
		t.Error("FromCode(418) should not be known")
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, Success},
		{"not found", errors.NotFound("no profile"), NotFound},
		{"exists", errors.AlreadyExists("profile exists"), Duplicate},
		{"invalid", errors.InvalidInput("missing params"), NullArgument},
		{"conflict", errors.Conflict("revision moved"), InternalError},
		{"plain", stderrors.New("boom"), InternalError},
		{"wrapped not found", errors.Wrap(errors.NotFound("x"), "get tasks"), NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromError(tt.err); got != tt.want {
				t.Errorf("FromError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResult_Envelope(t *testing.T) {
	type user struct {
		FirstName string `json:"first_name"`
	}

	tests := []struct {
		name string
		env  interface{}
		want string
	}{
		{"success", Ok(user{FirstName: "Ada"}).Envelope(), `{"code":200,"message":"Success","data":{"first_name":"Ada"}}`},
		{"created", Done[struct{}]().Envelope(), `{"code":201,"message":"Created"}`},
		{"duplicate", Exists[struct{}]().Envelope(), `{"code":409,"message":"Duplicate"}`},
		{"not found", Missing[user]().Envelope(), `{"code":404,"message":"Not found"}`},
		{"not found with empty list", MissingWith([]string{}).Envelope(), `{"code":404,"message":"Not found","data":[]}`},
		{"internal", Internal[user](stderrors.New("disk")).Envelope(), `{"code":500,"message":"Internal error"}`},
		{"bad argument", BadArgument[struct{}](stderrors.New("no params")).Envelope(), `{"code":400,"message":"Null argument"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.env)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResult_Accessors(t *testing.T) {
	r := Ok(42)
	if v, ok := r.Value(); !ok || v != 42 {
		t.Errorf("Value() = %v, %v", v, ok)
	}
	if r.Err() != nil {
		t.Error("success should carry no error")
	}

	cause := errors.NotFound("gone")
	f := Fail[int](cause)
	if f.Status() != NotFound {
		t.Errorf("Fail status = %v, want NotFound", f.Status())
	}
	if f.Err() != cause {
		t.Error("Fail should keep its error")
	}
	if _, ok := f.Value(); ok {
		t.Error("Fail should carry no value")
	}
}
