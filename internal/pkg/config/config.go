package config

import (
	"fmt"
	"log"
	"os/exec"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	viper "github.com/spf13/viper"
)

/*
把init log跟read log分開
init : 需要設置viper watch 與 onConfigChange
read log : 一般讀寫  需要使用讀寫所
*/
var config_siongleton *ConfigSingleTon
var muonce sync.Once

type ConfigSingleTon struct {
	Config *Config
	mu     sync.RWMutex
}

type Config struct {
	ServerPort        string `mapstructure:"SERVER_PORT"`
	DbName            string `mapstructure:"POSTGRES_DB"`
	DbHost            string `mapstructure:"POSTGRES_HOST"`
	DbPort            string `mapstructure:"POSTGRES_PORT"`
	DbUser            string `mapstructure:"POSTGRES_USER"`
	DbPas             string `mapstructure:"POSTGRES_PASSWORD"`
	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	RedisPas          string `mapstructure:"REDIS_PASSWORD"`
	EventStoreConnStr string `mapstructure:"EVENTSTORE_CONN_STR"`
	KafkaBrokers      string `mapstructure:"KAFKA_BROKERS"`
	OrderEventTopic   string `mapstructure:"ORDER_EVENT_TOPIC"`
	PaymentEventTopic string `mapstructure:"PAYMENT_EVENT_TOPIC"`
	ConsumerGroupID   string `mapstructure:"CONSUMER_GROUP_ID"`
}

// KafkaBrokerList KAFKA_BROKERS為逗號分隔
func (c *Config) KafkaBrokerList() []string {
	if c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if b := strings.TrimSpace(p); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// 讀寫都必須透過鎖, reload與讀取會並發
func (s *ConfigSingleTon) get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Config
}

func (s *ConfigSingleTon) replace(cf *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Config = cf
}

func GetConfig() *Config {
	initConfig()
	return config_siongleton.get()
}

func initConfig() {
	if config_siongleton == nil {
		muonce.Do(func() {
			config_siongleton = &ConfigSingleTon{}
			if cf, err := loadConfig(); err == nil {
				config_siongleton.replace(cf)
			} else {
				log.Fatal("error read logger config")
			}
			viper.WatchConfig()
			viper.OnConfigChange(func(e fsnotify.Event) {
				if cf, err := loadConfig(); err == nil {
					config_siongleton.replace(cf)
				} else {
					log.Panic("failed to reload config file")
				}
			})
		})
	}
}

/*
單純回傳錯誤  由外部決定要不要Fatal, 畢竟有可能有替代方案
*/
func loadConfig() (cf *Config, err error) {
	config_siongleton.mu.Lock()
	defer config_siongleton.mu.Unlock()

	cf = &Config{}
	viper.SetConfigFile(fmt.Sprintf("%s/.env", getProjectRoot("github.com/RoyceAzure/lab/storefront")))
	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(cf)
	if err != nil {
		return
	}
	return
}

func getProjectRoot(moduleName string) string {
	cmd := exec.Command("go", "list", "-m", "-f", "{{.Dir}}", moduleName)
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}
