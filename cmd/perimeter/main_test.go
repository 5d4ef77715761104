package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/eleven-am/perimeter"
)

func TestPrintRules(t *testing.T) {
	src, err := perimeter.ParseAddressSpace([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("parse src: %v", err)
	}
	dst, err := perimeter.ParseAddressSpace([]string{"10.0.1.0/24", "10.0.2.0/24"})
	if err != nil {
		t.Fatalf("parse dst: %v", err)
	}

	var buf bytes.Buffer
	printRules(&buf, []perimeter.Rule{
		{Src: src, Dst: dst, App: "tcp/22", Name: "subnet=pool-a/sg=admin"},
	})

	out := buf.String()
	if !strings.Contains(out, "subnet=pool-a/sg=admin") {
		t.Errorf("expected rule name in output, got %q", out)
	}
	if !strings.Contains(out, "tcp/22") {
		t.Errorf("expected app in output, got %q", out)
	}
	if !strings.Contains(out, "10.0.0.0/8 -> 10.0.1.0/24,10.0.2.0/24") {
		t.Errorf("expected endpoint sets in output, got %q", out)
	}
}
