package result

import (
	"errors"
	"testing"
)

func TestOk(t *testing.T) {
	t.Parallel()
	r := Ok(42)
	if r.IsError() {
		t.Fatal("Ok result reports IsError")
	}
	if r.Value() != 42 {
		t.Fatalf("Value() = %v, want 42", r.Value())
	}
	if r.Cause() != nil {
		t.Fatalf("Cause() = %v, want nil", r.Cause())
	}
}

func TestErr(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	r := Err(cause)
	if !r.IsError() {
		t.Fatal("Err result does not report IsError")
	}
	if r.Cause() != cause {
		t.Fatalf("Cause() = %v, want %v", r.Cause(), cause)
	}
	if r.Value() != nil {
		t.Fatalf("Value() = %v, want nil", r.Value())
	}
}
