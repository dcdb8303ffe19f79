package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"coinflip-server/common/logger"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config 服务配置，结构与 Nacos / Etcd / 本地文件中的 YAML/JSON 一致
// 金额字段单位均为 lamports，时间字段单位为秒
type Config struct {
	Server struct {
		Port     int    `yaml:"port" json:"port"`
		LogLevel string `yaml:"log_level" json:"log_level"`
	} `yaml:"server" json:"server"`

	Database struct {
		Driver             string `yaml:"driver" json:"driver"` // mysql | sqlite
		DSN                string `yaml:"dsn" json:"dsn"`
		MaxOpenConns       int    `yaml:"max_open_conns" json:"max_open_conns"`
		MaxIdleConns       int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec" json:"conn_max_lifetime_sec"`
		AutoMigrate        bool   `yaml:"auto_migrate" json:"auto_migrate"`
	} `yaml:"database" json:"database"`

	Redis struct {
		Addr     string `yaml:"addr" json:"addr"`
		Password string `yaml:"password" json:"password"`
		DB       int    `yaml:"db" json:"db"`
	} `yaml:"redis" json:"redis"`

	RocketMQ struct {
		Endpoint  string   `yaml:"endpoint" json:"endpoint"`
		AccessKey string   `yaml:"access_key" json:"access_key"`
		SecretKey string   `yaml:"secret_key" json:"secret_key"`
		Topics    []string `yaml:"topics" json:"topics"`
	} `yaml:"rocketmq" json:"rocketmq"`

	Observability struct {
		EnableProm bool   `yaml:"enable_prom" json:"enable_prom"`
		PromAddr   string `yaml:"prom_addr" json:"prom_addr"`
	} `yaml:"observability" json:"observability"`

	Auth struct {
		JWT struct {
			Secret         string `yaml:"secret" json:"secret"`
			AccessTokenTTL int    `yaml:"access_token_ttl" json:"access_token_ttl"` // 秒
			Issuer         string `yaml:"issuer" json:"issuer"`
		} `yaml:"jwt" json:"jwt"`
		Admin struct {
			Enabled bool   `yaml:"enabled" json:"enabled"`
			Token   string `yaml:"token" json:"token"`
		} `yaml:"admin" json:"admin"`
	} `yaml:"auth" json:"auth"`

	RateLimit struct {
		Enabled bool `yaml:"enabled" json:"enabled"`
		ByIP    struct {
			Requests      int `yaml:"requests" json:"requests"`
			WindowSeconds int `yaml:"window_seconds" json:"window_seconds"`
		} `yaml:"by_ip" json:"by_ip"`
		ByAccount struct {
			Requests      int `yaml:"requests" json:"requests"`
			WindowSeconds int `yaml:"window_seconds" json:"window_seconds"`
		} `yaml:"by_account" json:"by_account"`
	} `yaml:"rate_limit" json:"rate_limit"`

	CORS struct {
		Enabled          bool     `yaml:"enabled" json:"enabled"`
		AllowedOrigins   []string `yaml:"allowed_origins" json:"allowed_origins"`
		AllowedMethods   []string `yaml:"allowed_methods" json:"allowed_methods"`
		AllowedHeaders   []string `yaml:"allowed_headers" json:"allowed_headers"`
		AllowCredentials bool     `yaml:"allow_credentials" json:"allow_credentials"`
		MaxAge           int      `yaml:"max_age" json:"max_age"`
	} `yaml:"cors" json:"cors"`

	Game struct {
		MinBet           uint64 `yaml:"min_bet" json:"min_bet"`
		MaxBet           uint64 `yaml:"max_bet" json:"max_bet"`
		CooldownSec      int64  `yaml:"cooldown_sec" json:"cooldown_sec"`
		MaxRoomIDLen     int    `yaml:"max_room_id_len" json:"max_room_id_len"`
		SideMultiplier   uint64 `yaml:"side_multiplier" json:"side_multiplier"`
		TieMultiplier    uint64 `yaml:"tie_multiplier" json:"tie_multiplier"`
		TieRefundsSide   *bool  `yaml:"tie_refunds_side_bets" json:"tie_refunds_side_bets"`
		SettleTimeoutSec int64  `yaml:"settle_timeout_sec" json:"settle_timeout_sec"`
	} `yaml:"game" json:"game"`

	Randomness struct {
		ServerSeed  string `yaml:"server_seed" json:"server_seed"`
		ValueTTLSec int    `yaml:"value_ttl_sec" json:"value_ttl_sec"`
	} `yaml:"randomness" json:"randomness"`

	Workers struct {
		Outbox            bool `yaml:"outbox" json:"outbox"`
		Fulfiller         bool `yaml:"fulfiller" json:"fulfiller"`
		AutoSettle        bool `yaml:"auto_settle" json:"auto_settle"`
		AutoRefund        bool `yaml:"auto_refund" json:"auto_refund"`
		SettleIntervalMS  int  `yaml:"settle_interval_ms" json:"settle_interval_ms"`
		RefundIntervalSec int  `yaml:"refund_interval_sec" json:"refund_interval_sec"`
	} `yaml:"workers" json:"workers"`

	// 动态配置：功能开关与业务阈值（阈值可按名称覆盖 game 段）
	FeatureFlags map[string]bool  `yaml:"feature_flags" json:"feature_flags"`
	Thresholds   map[string]int64 `yaml:"thresholds" json:"thresholds"`
}

// Load 按优先级加载配置：Nacos -> Etcd -> 本地文件
// 环境变量：
//   - NACOS_SERVER_ADDR / NACOS_DATA_ID / NACOS_NAMESPACE / NACOS_GROUP
//   - ETCD_ENDPOINTS / ETCD_CONFIG_KEY
//   - CONFIG_FILE（默认 config/dev.yaml）
func Load(ctx context.Context) (*Config, error) {
	if strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR")) != "" {
		cfg, err := loadFromNacos()
		if err == nil {
			logger.Info("config loaded from nacos", zap.String("data_id", os.Getenv("NACOS_DATA_ID")))
			return cfg, nil
		}
		logger.Warn("load config from nacos failed, falling back", zap.Error(err))
	}

	if strings.TrimSpace(os.Getenv("ETCD_ENDPOINTS")) != "" {
		cfg, err := loadFromEtcd(ctx)
		if err == nil {
			logger.Info("config loaded from etcd", zap.String("key", os.Getenv("ETCD_CONFIG_KEY")))
			return cfg, nil
		}
		logger.Warn("load config from etcd failed, falling back", zap.Error(err))
	}

	configFile := getEnvOrDefault("CONFIG_FILE", "config/dev.yaml")
	cfg, err := loadFromFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config (%s): %w", configFile, err)
	}
	logger.Info("config loaded from file", zap.String("file", configFile))
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

// decode 按扩展名解析；未知扩展名先试 YAML 再试 JSON
func decode(name string, data []byte) (*Config, error) {
	var cfg Config
	switch filepath.Ext(name) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			if err2 := json.Unmarshal(data, &cfg); err2 != nil {
				return nil, fmt.Errorf("parse config (yaml: %v, json: %v)", err, err2)
			}
		}
	}
	return &cfg, nil
}

func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return decode(filePath, data)
}

func loadFromEtcd(ctx context.Context) (*Config, error) {
	var endpoints []string
	for _, ep := range strings.Split(os.Getenv("ETCD_ENDPOINTS"), ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			endpoints = append(endpoints, ep)
		}
	}
	if len(endpoints) == 0 {
		return nil, errors.New("empty ETCD_ENDPOINTS")
	}
	key := strings.TrimSpace(os.Getenv("ETCD_CONFIG_KEY"))
	if key == "" {
		return nil, errors.New("ETCD_CONFIG_KEY not set")
	}
	dialTimeout := 5 * time.Second
	if sec, err := strconv.Atoi(strings.TrimSpace(os.Getenv("ETCD_DIAL_TIMEOUT_SEC"))); err == nil && sec > 0 {
		dialTimeout = time.Duration(sec) * time.Second
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
		Username:    os.Getenv("ETCD_USERNAME"),
		Password:    os.Getenv("ETCD_PASSWORD"),
	})
	if err != nil {
		return nil, fmt.Errorf("etcd connect failed: %w", err)
	}
	defer cli.Close()

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := cli.Get(c, key)
	if err != nil {
		return nil, fmt.Errorf("etcd get failed: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("etcd key not found: %s", key)
	}
	return decode(key, resp.Kvs[0].Value)
}

// nacosParams 从环境变量组装 Nacos 客户端参数
func nacosParams() (vo.NacosClientParam, string, string, error) {
	serverAddr := strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR"))
	dataID := strings.TrimSpace(os.Getenv("NACOS_DATA_ID"))
	if serverAddr == "" || dataID == "" {
		return vo.NacosClientParam{}, "", "", errors.New("NACOS_SERVER_ADDR and NACOS_DATA_ID are required")
	}
	group := getEnvOrDefault("NACOS_GROUP", "DEFAULT_GROUP")

	timeoutMS := 5000
	if t, err := strconv.Atoi(strings.TrimSpace(os.Getenv("NACOS_TIMEOUT_MS"))); err == nil && t > 0 {
		timeoutMS = t
	}

	var serverConfigs []constant.ServerConfig
	for _, addr := range strings.Split(serverAddr, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		host, portStr, ok := strings.Cut(addr, ":")
		if !ok {
			return vo.NacosClientParam{}, "", "", fmt.Errorf("invalid NACOS_SERVER_ADDR: %s (expected host:port)", addr)
		}
		port, err := strconv.ParseUint(portStr, 10, 64)
		if err != nil {
			return vo.NacosClientParam{}, "", "", fmt.Errorf("invalid port in NACOS_SERVER_ADDR: %s", portStr)
		}
		serverConfigs = append(serverConfigs, constant.ServerConfig{IpAddr: host, Port: port})
	}
	if len(serverConfigs) == 0 {
		return vo.NacosClientParam{}, "", "", errors.New("no valid server address in NACOS_SERVER_ADDR")
	}

	clientConfig := constant.ClientConfig{
		NamespaceId:         getEnvOrDefault("NACOS_NAMESPACE", "public"),
		TimeoutMs:           uint64(timeoutMS),
		NotLoadCacheAtStart: true,
		LogDir:              "/tmp/nacos/log",
		CacheDir:            "/tmp/nacos/cache",
		LogLevel:            "warn",
	}
	if u, p := strings.TrimSpace(os.Getenv("NACOS_USERNAME")), strings.TrimSpace(os.Getenv("NACOS_PASSWORD")); u != "" && p != "" {
		clientConfig.Username = u
		clientConfig.Password = p
	}
	return vo.NacosClientParam{ClientConfig: &clientConfig, ServerConfigs: serverConfigs}, dataID, group, nil
}

func newNacosClient() (config_client.IConfigClient, string, string, error) {
	param, dataID, group, err := nacosParams()
	if err != nil {
		return nil, "", "", err
	}
	cli, err := clients.NewConfigClient(param)
	if err != nil {
		return nil, "", "", fmt.Errorf("create nacos config client: %w", err)
	}
	return cli, dataID, group, nil
}

func loadFromNacos() (*Config, error) {
	cli, dataID, group, err := newNacosClient()
	if err != nil {
		return nil, err
	}
	content, err := cli.GetConfig(vo.ConfigParam{DataId: dataID, Group: group})
	if err != nil {
		return nil, fmt.Errorf("get config from nacos: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("nacos config is empty: dataId=%s, group=%s", dataID, group)
	}
	return decode(dataID, []byte(content))
}
