package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-errors/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTarget = "docs/index.html"
	FileName      = "post-web-build.yaml"
	EnvFileName   = ".env"
	WebhookEnv    = "WEBHOOK_URL"
)

// Config 运行配置
type Config struct {
	// Target 相对 root 的构建产物路径
	Target  string `yaml:"target"`
	Webhook string `yaml:"webhook"`
}

// Load 依次读取默认值、post-web-build.yaml、.env 与进程环境变量
// lookupEnv 为 nil 时使用 os.LookupEnv
func Load(fs afero.Fs, root string, lookupEnv func(string) (string, bool)) (*Config, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	cfg := &Config{Target: DefaultTarget}

	if err := cfg.loadFile(fs, filepath.Join(root, FileName)); err != nil {
		return nil, err
	}

	dotenv, err := readDotenv(fs, filepath.Join(root, EnvFileName))
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(dotenv[WebhookEnv]); v != "" {
		cfg.Webhook = v
	}

	// 进程环境变量优先于 .env
	if v, ok := lookupEnv(WebhookEnv); ok && strings.TrimSpace(v) != "" {
		cfg.Webhook = strings.TrimSpace(v)
	}

	return cfg, nil
}

func (c *Config) loadFile(fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, 0)
	}

	var fileCfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		// 空文件视为未配置
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Errorf("parse %s: %w", path, err)
	}

	if fileCfg.Target != "" {
		c.Target = fileCfg.Target
	}
	if fileCfg.Webhook != "" {
		c.Webhook = strings.TrimSpace(fileCfg.Webhook)
	}
	return nil
}

func readDotenv(fs afero.Fs, path string) (map[string]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, 0)
	}
	defer f.Close()

	values, err := godotenv.Parse(f)
	if err != nil {
		return nil, errors.Errorf("parse %s: %w", path, err)
	}
	return values, nil
}

// TargetPath 目标文件的完整路径
func (c *Config) TargetPath(root string) string {
	if filepath.IsAbs(c.Target) {
		return c.Target
	}
	return filepath.Join(root, c.Target)
}
