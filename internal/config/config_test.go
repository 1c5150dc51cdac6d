package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestLoad 使用表驱动测试覆盖配置加载的核心场景
func TestLoad(t *testing.T) {
	tests := []struct {
		name       string
		createFile bool
		content    string
		wantErr    bool
		validate   func(t *testing.T, cfg *Config, err error)
	}{
		{
			name:       "正常加载有效YAML",
			createFile: true,
			content: `listen:
  host: "0.0.0.0"
  port: 6000
remote:
  host: "repl.example.com"
  port: 5555
relay:
  buffer_size: 8192
  retry_interval: 250ms
  retry_max_interval: 5s
  no_delay: false
logging:
  level: "debug"
  format: "json"
  file: "passthru.log"
`,
			validate: func(t *testing.T, cfg *Config, err error) {
				if cfg.Listen.Host != "0.0.0.0" || cfg.Listen.Port != 6000 {
					t.Errorf("Listen = %+v, 期望 0.0.0.0:6000", cfg.Listen)
				}
				if cfg.Remote.Host != "" || cfg.Remote.Port != 0 {
					t.Errorf("Remote = %+v, 远端只能来自命令行参数", cfg.Remote)
				}
				if cfg.Relay.BufferSize != 8192 {
					t.Errorf("Relay.BufferSize = %d, 期望 8192", cfg.Relay.BufferSize)
				}
				if cfg.Relay.RetryInterval != 250*time.Millisecond {
					t.Errorf("Relay.RetryInterval = %s, 期望 250ms", cfg.Relay.RetryInterval)
				}
				if cfg.Relay.RetryMaxInterval != 5*time.Second {
					t.Errorf("Relay.RetryMaxInterval = %s, 期望 5s", cfg.Relay.RetryMaxInterval)
				}
				if cfg.Relay.NoDelayEnabled() {
					t.Error("no_delay: false 应关闭 TCP_NODELAY")
				}
				if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" || cfg.Logging.File != "passthru.log" {
					t.Errorf("Logging = %+v", cfg.Logging)
				}
			},
		},
		{
			name:       "文件不存在",
			createFile: false,
			wantErr:    true,
			validate: func(t *testing.T, cfg *Config, err error) {
				if !os.IsNotExist(err) {
					t.Errorf("期望文件不存在错误，实际: %v", err)
				}
			},
		},
		{
			name:       "YAML格式错误",
			createFile: true,
			content: `listen:
  host: "127.0.0.1"
  port: [5555
`,
			wantErr: true,
			validate: func(t *testing.T, cfg *Config, err error) {
				if err == nil || !strings.Contains(err.Error(), "yaml") {
					t.Errorf("期望返回YAML解析错误，实际: %v", err)
				}
			},
		},
		{
			name:       "空文件使用默认值",
			createFile: true,
			content:    "",
			validate: func(t *testing.T, cfg *Config, err error) {
				if cfg.Listen.Host != DefaultListenHost || cfg.Listen.Port != DefaultListenPort {
					t.Errorf("Listen = %+v, 期望默认值", cfg.Listen)
				}
				if cfg.Relay.BufferSize != DefaultBufferSize {
					t.Errorf("Relay.BufferSize = %d, 期望 %d", cfg.Relay.BufferSize, DefaultBufferSize)
				}
				if cfg.Relay.RetryInterval != DefaultRetryInterval || cfg.Relay.RetryMaxInterval != DefaultRetryInterval {
					t.Errorf("重试间隔应固定为 %s, 实际 %s/%s", DefaultRetryInterval, cfg.Relay.RetryInterval, cfg.Relay.RetryMaxInterval)
				}
				if !cfg.Relay.NoDelayEnabled() {
					t.Error("默认应开启 TCP_NODELAY")
				}
				if cfg.Remote.Host != "" {
					t.Errorf("Remote.Host 应为空，实际 %q", cfg.Remote.Host)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			configPath := filepath.Join(tempDir, "config.yaml")

			if tt.createFile {
				if err := os.WriteFile(configPath, []byte(tt.content), 0o644); err != nil {
					t.Fatalf("创建测试配置文件失败: %v", err)
				}
			}

			cfg, err := Load(configPath)

			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && cfg == nil {
				t.Fatalf("Load() 返回了 nil 配置")
			}
			if tt.validate != nil {
				tt.validate(t, cfg, err)
			}
		})
	}
}

func TestApplyArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantUsage  bool
		wantErr    bool
		wantListen string
		wantRemote string
	}{
		{name: "无参数", args: nil, wantUsage: true},
		{name: "一个参数", args: []string{"localhost"}, wantUsage: true},
		{name: "五个参数", args: []string{"a", "1", "b", "2", "c"}, wantUsage: true},
		{
			name:       "只指定远端",
			args:       []string{"localhost", "5555"},
			wantListen: "127.0.0.1:5555",
			wantRemote: "localhost:5555",
		},
		{
			name:       "指定本地地址",
			args:       []string{"localhost", "5555", "0.0.0.0"},
			wantListen: "0.0.0.0:5555",
			wantRemote: "localhost:5555",
		},
		{
			name:       "指定本地地址和端口",
			args:       []string{"localhost", "5555", "0.0.0.0", "6000"},
			wantListen: "0.0.0.0:6000",
			wantRemote: "localhost:5555",
		},
		{name: "远端端口不是数字", args: []string{"localhost", "repl"}, wantErr: true},
		{name: "本地端口不是数字", args: []string{"localhost", "5555", "0.0.0.0", "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := cfg.ApplyArgs(tt.args)
			if tt.wantUsage {
				if !errors.Is(err, ErrUsage) {
					t.Fatalf("ApplyArgs() error = %v, 期望 ErrUsage", err)
				}
				return
			}
			if tt.wantErr {
				if err == nil || errors.Is(err, ErrUsage) {
					t.Fatalf("ApplyArgs() error = %v, 期望端口解析错误", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyArgs() error = %v", err)
			}
			if got := cfg.ListenAddr(); got != tt.wantListen {
				t.Errorf("ListenAddr() = %q, 期望 %q", got, tt.wantListen)
			}
			if got := cfg.RemoteAddr(); got != tt.wantRemote {
				t.Errorf("RemoteAddr() = %q, 期望 %q", got, tt.wantRemote)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Remote = RemoteConfig{Host: "localhost", Port: 5555}
		return cfg
	}
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{name: "合法配置", mutate: func(*Config) {}},
		{name: "缺少远端主机", mutate: func(c *Config) { c.Remote.Host = "" }, wantErr: "remote.host"},
		{name: "远端端口越界", mutate: func(c *Config) { c.Remote.Port = 70000 }, wantErr: "remote.port"},
		{name: "本地端口为零", mutate: func(c *Config) { c.Listen.Port = 0 }, wantErr: "listen.port"},
		{name: "缓冲区为负", mutate: func(c *Config) { c.Relay.BufferSize = -1 }, wantErr: "buffer_size"},
		{
			name:    "最大重试间隔过小",
			mutate:  func(c *Config) { c.Relay.RetryMaxInterval = time.Millisecond },
			wantErr: "retry_max_interval",
		},
		{name: "未知日志格式", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, 期望包含 %q", err, tt.wantErr)
			}
		})
	}
}
