package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go-simpler.org/env"
	"gopkg.in/yaml.v3"

	"PomodoroTimer/internal/models"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type AppConfig struct {
	Name         string `yaml:"name"`
	Version      string `yaml:"version"`
	WindowWidth  int    `yaml:"window_width"`
	WindowHeight int    `yaml:"window_height"`
	StartPreset  string `yaml:"start_preset"`
}

type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"` // 为空时不开启
}

// envOverrides 中设置了的变量覆盖配置文件，但不会写回文件
type envOverrides struct {
	LogLevel    string `env:"POMODORO_LOG_LEVEL"`
	LogFormat   string `env:"POMODORO_LOG_FORMAT"`
	DBPath      string `env:"POMODORO_DB_PATH"`
	MetricsAddr string `env:"POMODORO_METRICS_ADDR"`
}

// 默认配置
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:         "Pomodoro",
			Version:      "1.0.0",
			WindowWidth:  480,
			WindowHeight: 320,
			StartPreset:  models.PresetPomodoro,
		},
		Database: DatabaseConfig{
			Enabled: true,
			Path:    "pomodoro.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// StartPreset 返回启动时的预设，未知名称回退到默认预设
func (c *Config) StartPreset() models.SessionConfig {
	if p, ok := models.LookupPreset(c.App.StartPreset); ok {
		return p
	}
	if c.App.StartPreset != "" {
		slog.Warn("Unknown start preset, using default", "preset", c.App.StartPreset)
	}
	return models.DefaultPreset()
}

type Manager struct {
	config     *Config
	configPath string
}

func NewManager() (*Manager, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(filepath.Join(configDir, "config.yaml"))
}

// NewManagerAt 读取指定路径的配置，文件不存在时写入默认配置
func NewManagerAt(configPath string) (*Manager, error) {
	manager := &Manager{
		configPath: configPath,
	}

	err := manager.loadConfig()
	switch {
	case errors.Is(err, os.ErrNotExist):
		manager.config = DefaultConfig()
		if err := manager.SaveConfig(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	if err := manager.applyEnv(); err != nil {
		return nil, err
	}
	manager.normalize()
	return manager, nil
}

func (m *Manager) loadConfig() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parse config %s: %w", m.configPath, err)
	}

	m.config = config
	return nil
}

func (m *Manager) applyEnv() error {
	var o envOverrides
	if err := env.Load(&o, nil); err != nil {
		return fmt.Errorf("load environment overrides: %w", err)
	}

	if o.LogLevel != "" {
		m.config.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		m.config.Log.Format = o.LogFormat
	}
	if o.DBPath != "" {
		m.config.Database.Path = o.DBPath
	}
	if o.MetricsAddr != "" {
		m.config.Metrics.ListenAddr = o.MetricsAddr
	}
	return nil
}

// normalize 修正无效的窗口尺寸和空路径
func (m *Manager) normalize() {
	def := DefaultConfig()
	if m.config.App.WindowWidth <= 0 {
		m.config.App.WindowWidth = def.App.WindowWidth
	}
	if m.config.App.WindowHeight <= 0 {
		m.config.App.WindowHeight = def.App.WindowHeight
	}
	if m.config.Database.Path == "" {
		m.config.Database.Path = def.Database.Path
	}
	if !filepath.IsAbs(m.config.Database.Path) {
		m.config.Database.Path = filepath.Join(filepath.Dir(m.configPath), m.config.Database.Path)
	}
}

func (m *Manager) SaveConfig() error {
	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}

	// 确保配置目录存在
	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	return os.WriteFile(m.configPath, data, 0644)
}

func (m *Manager) GetConfig() *Config {
	return m.config
}

func (m *Manager) Path() string {
	return m.configPath
}

// 获取配置文件目录
func getConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".pomodoro"), nil
}
