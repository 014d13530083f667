package kv

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Options 是打开后端所需的连接参数，由 config 层映射而来。
type Options struct {
	Address  string
	Password string
	DB       int
	Timeout  time.Duration
	Logger   *logrus.Logger
}

// Driver 记录一个后端驱动的静态信息，供配置校验和诊断端使用。
type Driver struct {
	Key         string
	Description string
	// AtomicBatch 为 true 时 Apply 全部成功或全部失败。
	AtomicBatch bool
	Open        func(Options) (Backend, error)
}

var globalRegistry = newRegistry()

type registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

func newRegistry() *registry {
	return &registry{drivers: make(map[string]Driver)}
}

// Register 将驱动加入全局注册表，重复键会返回错误。
func Register(driver Driver) error {
	return globalRegistry.register(driver)
}

// MustRegister 在注册失败时 panic，适合驱动 init() 中调用。
func MustRegister(driver Driver) {
	if err := Register(driver); err != nil {
		panic(err)
	}
}

// Resolve 返回指定键的驱动。
func Resolve(key string) (Driver, bool) {
	return globalRegistry.resolve(key)
}

// List 返回按键排序的驱动列表。
func List() []Driver {
	return globalRegistry.list()
}

// Keys 返回所有已注册驱动的键值，供配置校验提示使用。
func Keys() []string {
	items := List()
	result := make([]string, len(items))
	for i, driver := range items {
		result[i] = driver.Key
	}
	return result
}

// Open 通过驱动键打开后端，并包上请求耗时统计。
func Open(key string, opts Options) (Backend, error) {
	driver, ok := Resolve(key)
	if !ok {
		return nil, fmt.Errorf("kv driver %s is not registered", key)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	backend, err := driver.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", driver.Key, err)
	}
	return Instrument(driver.Key, backend), nil
}

func (r *registry) normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *registry) register(driver Driver) error {
	key := r.normalizeKey(driver.Key)
	if key == "" {
		return fmt.Errorf("driver key is required")
	}
	if driver.Open == nil {
		return fmt.Errorf("driver %s has no Open func", key)
	}
	driver.Key = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.drivers[key]; exists {
		return fmt.Errorf("driver %s already registered", key)
	}
	r.drivers[key] = driver
	return nil
}

func (r *registry) resolve(key string) (Driver, bool) {
	if key == "" {
		return Driver{}, false
	}
	normalized := r.normalizeKey(key)

	r.mu.RLock()
	defer r.mu.RUnlock()

	driver, ok := r.drivers[normalized]
	return driver, ok
}

func (r *registry) list() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.drivers) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.drivers))
	for key := range r.drivers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Driver, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.drivers[key])
	}
	return result
}
