package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	Data   string
	Config string
	Set    map[string]bool
}

// ParseFlags parses command-line flags.
func ParseFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dataPtr := flag.String("data", "./.deltastore", "storage data directory")
	cfgPtr := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{Addr: *addrPtr, Data: *dataPtr, Config: *cfgPtr, Set: set}
}

// Load reads the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadEffective merges (in ascending precedence) file config, environment
// overrides and explicit flags into the effective configuration.
func LoadEffective(flags Flags) (*Config, error) {
	cfg := &Config{}
	cfgPath := flags.Config
	if env := os.Getenv("DELTASTORE_CONFIG"); env != "" && !flags.Set["config"] {
		cfgPath = env
	}
	if fileCfg, err := Load(cfgPath); err == nil {
		cfg = fileCfg
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnv(cfg)

	if flags.Set["addr"] || cfg.Server.Address == "" {
		cfg.Server.Address = flags.Addr
	}
	if flags.Set["data"] || cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = flags.Data
	}
	return cfg, nil
}

// applyEnv applies DELTASTORE_* environment overrides onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DELTASTORE_ADDR"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("DELTASTORE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("DELTASTORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DELTASTORE_BACKEND_KEYS"); v != "" {
		cfg.Security.APIKeys.Backend = splitList(v)
	}
	if v := os.Getenv("DELTASTORE_ADMIN_KEYS"); v != "" {
		cfg.Security.APIKeys.Admin = splitList(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate rejects configurations the app cannot start with.
func (c *Config) Validate() error {
	seenKS := make(map[string]bool)
	for _, ks := range c.Storage.Keyspaces {
		if ks.Name == "" {
			return fmt.Errorf("storage.keyspaces: keyspace without a name")
		}
		if seenKS[ks.Name] {
			return fmt.Errorf("storage.keyspaces: duplicate keyspace %q", ks.Name)
		}
		seenKS[ks.Name] = true
	}
	seenPl := make(map[string]bool)
	for _, pl := range c.Storage.Placements {
		if pl.Name == "" {
			return fmt.Errorf("storage.placements: placement without a name")
		}
		if seenPl[pl.Name] {
			return fmt.Errorf("storage.placements: duplicate placement %q", pl.Name)
		}
		if !seenKS[pl.Keyspace] {
			return fmt.Errorf("storage.placements: placement %q references unknown keyspace %q", pl.Name, pl.Keyspace)
		}
		seenPl[pl.Name] = true
	}
	for _, t := range c.Tables {
		if t.Name == "" {
			return fmt.Errorf("tables: table without a name")
		}
		if len(t.Placements) == 0 {
			return fmt.Errorf("tables: table %q has no placements", t.Name)
		}
		for _, p := range t.Placements {
			if !seenPl[p] {
				return fmt.Errorf("tables: table %q references unknown placement %q", t.Name, p)
			}
		}
	}
	if c.Writer.MaxDeltaSize > 0 && c.Writer.MaxFrameSize > 0 && c.Writer.MaxDeltaSize >= c.Writer.MaxFrameSize {
		return fmt.Errorf("writer: max_delta_size must leave headroom under max_frame_size")
	}
	return nil
}
