package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"
)

type SystemConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type WebConfig struct {
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	JwtSecret string `yaml:"jwt_secret" json:"jwt_secret"`
}

type DatabaseConfig struct {
	Type   string `yaml:"type" json:"type"`
	Host   string `yaml:"host" json:"host"`
	Port   int    `yaml:"port" json:"port"`
	Name   string `yaml:"name" json:"name"`
	User   string `yaml:"user" json:"user"`
	Passwd string `yaml:"passwd" json:"passwd"`
	Debug  bool   `yaml:"debug" json:"debug"`
}

type LoggerConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

type NotifyConfig struct {
	LowStockThreshold int    `yaml:"low_stock_threshold" json:"low_stock_threshold"`
	ExpiryWindowDays  int    `yaml:"expiry_window_days" json:"expiry_window_days"`
	WebhookURL        string `yaml:"webhook_url" json:"webhook_url"`
	SmtpHost          string `yaml:"smtp_host" json:"smtp_host"`
	SmtpPort          int    `yaml:"smtp_port" json:"smtp_port"`
	SmtpUser          string `yaml:"smtp_user" json:"smtp_user"`
	SmtpPasswd        string `yaml:"smtp_passwd" json:"smtp_passwd"`
	MailFrom          string `yaml:"mail_from" json:"mail_from"`
	MailTo            string `yaml:"mail_to" json:"mail_to"`
}

type AppConfig struct {
	System   SystemConfig   `yaml:"system" json:"system"`
	Web      WebConfig      `yaml:"web" json:"web"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Logger   LoggerConfig   `yaml:"logger" json:"logger"`
	Notify   NotifyConfig   `yaml:"notify" json:"notify"`
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		System: SystemConfig{
			Appid:    "freshpos",
			Location: "Asia/Manila",
			Workdir:  "/var/freshpos",
			Debug:    false,
		},
		Web: WebConfig{
			Host:      "0.0.0.0",
			Port:      1816,
			JwtSecret: "9b6de5cc-0001-0001-0001-c28cba8d4b9d",
		},
		Database: DatabaseConfig{
			Type:   "postgres",
			Host:   "127.0.0.1",
			Port:   5432,
			Name:   "freshpos",
			User:   "postgres",
			Passwd: "",
			Debug:  false,
		},
		Logger: LoggerConfig{
			Mode:       "development",
			FileEnable: true,
		},
		Notify: NotifyConfig{
			LowStockThreshold: 10,
			ExpiryWindowDays:  3,
		},
	}
}

// LoadConfig builds the runtime configuration from built-in defaults, an
// optional yaml file and FRESHPOS_* environment variables, in that order of
// precedence (environment wins).
func LoadConfig(cfile string) *AppConfig {
	cfg := DefaultConfig()

	explicit := cfile != ""
	if cfile == "" {
		cfile = "freshpos.yml"
	}
	data, err := os.ReadFile(cfile)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			panic(err)
		}
	case explicit || !os.IsNotExist(err):
		// A missing default file is normal; anything else deserves a note
		// before the logger is up.
		fmt.Fprintf(os.Stderr, "freshpos: cannot read config file %s: %v\n", cfile, err)
	}

	applyEnvOverrides(cfg)

	if cfg.Logger.Filename == "" {
		cfg.Logger.Filename = filepath.Join(cfg.System.Workdir, "freshpos.log")
	}
	return cfg
}

// applyEnvOverrides folds FRESHPOS_<SECTION>_<KEY> environment variables into
// the config. The variables are collected into a nested map and decoded with
// mapstructure so string values coerce into the target field types.
func applyEnvOverrides(cfg *AppConfig) {
	sections := map[string]map[string]interface{}{}
	for _, kv := range os.Environ() {
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) != 2 || !strings.HasPrefix(pair[0], "FRESHPOS_") {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(pair[0], "FRESHPOS_"), "_", 2)
		if len(parts) != 2 {
			continue
		}
		section := strings.ToLower(parts[0])
		key := strings.ToLower(parts[1])
		if sections[section] == nil {
			sections[section] = map[string]interface{}{}
		}
		sections[section][key] = pair[1]
	}
	if len(sections) == 0 {
		return
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		panic(err)
	}
	if err := decoder.Decode(sections); err != nil {
		panic(err)
	}
}
