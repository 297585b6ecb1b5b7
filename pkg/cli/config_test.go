package cli

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/haivivi/crpairs/pkg/storage"
)

func TestConfigContexts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := LoadConfigWithPath("crpairs", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("empty config not written: %v", err)
	}
	if ctx, err := cfg.ResolveContext(""); ctx != nil || err != nil {
		t.Fatalf("ResolveContext with no contexts = %v, %v", ctx, err)
	}

	err = cfg.AddContext("ubuntu", &Context{Defaults: JobSpec{
		ContextSize: 3,
		Sep:         "__eou__",
		S3:          &storage.S3Config{Endpoint: "http://minio:9000", SecretAccessKey: "supersecretvalue"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.AddContext("dailydialog", &Context{Defaults: JobSpec{Format: "json", Query: ".dialog[].text"}}); err != nil {
		t.Fatal(err)
	}
	if cfg.CurrentContext != "ubuntu" {
		t.Errorf("current = %q, want the first context added", cfg.CurrentContext)
	}
	if err := cfg.UseContext("dailydialog"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.UseContext("missing"); err == nil {
		t.Error("UseContext(missing) succeeded")
	}

	reloaded, err := LoadConfigWithPath("crpairs", path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.ListContexts(); !slices.Equal(got, []string{"dailydialog", "ubuntu"}) {
		t.Errorf("contexts = %v", got)
	}
	cur, err := reloaded.ResolveContext("")
	if err != nil {
		t.Fatal(err)
	}
	if cur.Name != "dailydialog" || cur.Defaults.Query != ".dialog[].text" {
		t.Errorf("current context = %+v", cur)
	}
	ub, err := reloaded.ResolveContext("ubuntu")
	if err != nil {
		t.Fatal(err)
	}
	if ub.Defaults.ContextSize != 3 || ub.Defaults.S3 == nil || ub.Defaults.S3.Endpoint != "http://minio:9000" {
		t.Errorf("ubuntu context = %+v", ub.Defaults)
	}

	if err := reloaded.DeleteContext("dailydialog"); err != nil {
		t.Fatal(err)
	}
	if reloaded.CurrentContext != "" {
		t.Errorf("current after delete = %q", reloaded.CurrentContext)
	}
	if err := reloaded.DeleteContext("dailydialog"); err == nil {
		t.Error("second delete succeeded")
	}
}

func TestContextMasked(t *testing.T) {
	ctx := &Context{Name: "x", Defaults: JobSpec{S3: &storage.S3Config{AccessKeyID: "AKIA", SecretAccessKey: "abcdefghijkl"}}}
	m := ctx.Masked()
	if m.Defaults.S3.SecretAccessKey != "abcd****ijkl" {
		t.Errorf("masked = %q", m.Defaults.S3.SecretAccessKey)
	}
	if ctx.Defaults.S3.SecretAccessKey != "abcdefghijkl" {
		t.Error("Masked modified the original")
	}
	if (&Context{}).Masked().Defaults.S3 != nil {
		t.Error("Masked invented S3 settings")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct{ key, want string }{
		{"", ""},
		{"1234", "****"},
		{"12345678", "********"},
		{"123456789", "1234*6789"},
	}
	for _, tt := range tests {
		if got := MaskSecret(tt.key); got != tt.want {
			t.Errorf("MaskSecret(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestPaths(t *testing.T) {
	p := &Paths{AppName: "crpairs", HomeDir: "/home/u"}
	if got := p.ConfigFile(); got != filepath.Join("/home/u", ".crpairs", "crpairs", "config.yaml") {
		t.Errorf("ConfigFile = %q", got)
	}
	if got := p.IndexDir(); got != filepath.Join("/home/u", ".crpairs", "crpairs", "index") {
		t.Errorf("IndexDir = %q", got)
	}
	dir, err := Ensure(filepath.Join(t.TempDir(), "a", "b"))
	if err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Errorf("Ensure did not create %s", dir)
	}
}
