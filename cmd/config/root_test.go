package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	cmdUtil "github.com/ValentinKolb/giggle/cmd/util"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func TestDocumentRoundTripsThroughConfigFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	fs := cmdUtil.ServerFlags()
	if err := fs.Parse([]string{"--port", "9000", "--max-connections", "2", "--read-mode", "once"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}
	if err := viper.BindPFlags(fs); err != nil {
		t.Fatalf("Failed to bind flags: %v", err)
	}

	doc, err := Document(fs)
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	// flags keep their declaration order
	if !strings.HasPrefix(string(out), "transport: tcp\n") {
		t.Errorf("Expected transport as first key, got\n%s", out)
	}

	// the output is a valid config file
	path := filepath.Join(t.TempDir(), "giggle.yaml")
	if err := os.WriteFile(path, out, 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	viper.Reset()
	viper.Set("config", path)
	if err := cmdUtil.ReadConfigFile(); err != nil {
		t.Fatalf("ReadConfigFile failed: %v", err)
	}

	conf, err := cmdUtil.GetServerConfig()
	if err != nil {
		t.Fatalf("Config from file is invalid: %v", err)
	}
	if conf.Transport.Port != 9000 || conf.Transport.MaxConnections != 2 || conf.ReadMode != "once" {
		t.Errorf("Unexpected config from file: %+v", conf)
	}
}
