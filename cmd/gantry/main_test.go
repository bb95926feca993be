package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rhuss/gantry/pkg/adapter"
	"github.com/rhuss/gantry/pkg/config"
	"github.com/rhuss/gantry/pkg/middleware"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAdaptersCommand(t *testing.T) {
	out, err := execute(t, "adapters")
	if err != nil {
		t.Fatalf("adapters: %v", err)
	}
	want := "fasthttp (thin)\nfcgi\nnethttp (mongrel, webrick)\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestListAdaptersCustomRegistry(t *testing.T) {
	reg := adapter.NewRegistry()
	reg.MustRegister(func() adapter.Adapter { return &adapter.NetHTTP{} }, "nethttp")
	reg.Freeze()

	var buf bytes.Buffer
	if err := listAdapters(&buf, reg); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "nethttp\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestTokenCommand(t *testing.T) {
	out, err := execute(t, "token", "--secret", "s3cret", "--session", "abc")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if strings.TrimSpace(out) != middleware.Token("s3cret", "abc") {
		t.Errorf("token = %q", out)
	}
}

func TestTokenCommandRequiresSecret(t *testing.T) {
	if _, err := execute(t, "token", "--session", "abc"); err == nil {
		t.Error("expected error without --secret")
	}
}

func TestServeFlagsOverrideConfig(t *testing.T) {
	cfg := config.Defaults()
	flags := &serveFlags{adapter: "thin", host: "127.0.0.1", port: 9999}
	flags.apply(&cfg)

	if cfg.Server.Adapter != "thin" || cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9999 {
		t.Errorf("server = %+v", cfg.Server)
	}

	cfg = config.Defaults()
	(&serveFlags{}).apply(&cfg)
	if cfg.Server != config.Defaults().Server {
		t.Errorf("empty flags changed config: %+v", cfg.Server)
	}
}

func TestServeRejectsArgs(t *testing.T) {
	if _, err := execute(t, "serve", "extra"); err == nil {
		t.Error("expected error for positional args")
	}
}
